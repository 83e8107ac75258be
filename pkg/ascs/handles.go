package ascs

// Attribute layout: the service declaration at the base handle, then per
// ASE a characteristic declaration, value and CCCD, then the Control Point
// declaration, value and CCCD.
const (
	attributesPerAse       = 3
	attributesControlPoint = 3
)

// AttributeKind classifies a handle within the service.
type AttributeKind uint8

const (
	AttributeUnknown AttributeKind = iota
	AttributeAseValue
	AttributeAseCCCD
	AttributeControlPoint
	AttributeControlPointCCCD
)

// String returns the attribute kind name.
func (k AttributeKind) String() string {
	switch k {
	case AttributeAseValue:
		return "ASE"
	case AttributeAseCCCD:
		return "ASE_CCCD"
	case AttributeControlPoint:
		return "CONTROL_POINT"
	case AttributeControlPointCCCD:
		return "CONTROL_POINT_CCCD"
	default:
		return "UNKNOWN"
	}
}

// HandleMap maps attribute handles to ASCS attributes.
type HandleMap struct {
	base    uint16
	numAses int
}

// NewHandleMap creates the handle layout for numAses ASEs after base.
func NewHandleMap(base uint16, numAses int) HandleMap {
	return HandleMap{base: base, numAses: numAses}
}

// AseValue returns the value handle of the ASE with the given id.
func (m HandleMap) AseValue(aseID uint8) uint16 {
	return m.base + uint16(attributesPerAse*(int(aseID)-1)) + 2
}

// AseCCCD returns the descriptor handle of the ASE with the given id.
func (m HandleMap) AseCCCD(aseID uint8) uint16 {
	return m.AseValue(aseID) + 1
}

// ControlPoint returns the Control Point value handle.
func (m HandleMap) ControlPoint() uint16 {
	return m.base + uint16(attributesPerAse*m.numAses) + 2
}

// ControlPointCCCD returns the Control Point descriptor handle.
func (m HandleMap) ControlPointCCCD() uint16 {
	return m.ControlPoint() + 1
}

// Lookup classifies handle. For ASE attributes it also returns the ASE id.
func (m HandleMap) Lookup(handle uint16) (AttributeKind, uint8) {
	switch handle {
	case m.ControlPoint():
		return AttributeControlPoint, 0
	case m.ControlPointCCCD():
		return AttributeControlPointCCCD, 0
	}
	if handle < m.base+2 {
		return AttributeUnknown, 0
	}
	off := int(handle - m.base - 1)
	idx := off / attributesPerAse
	if idx >= m.numAses {
		return AttributeUnknown, 0
	}
	id := uint8(idx + 1)
	switch off % attributesPerAse {
	case 1:
		return AttributeAseValue, id
	case 2:
		return AttributeAseCCCD, id
	default:
		return AttributeUnknown, 0
	}
}
