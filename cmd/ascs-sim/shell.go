package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/currantlabs/ble"

	"github.com/mash-protocol/ascs-go/pkg/ascs"
	"github.com/mash-protocol/ascs-go/pkg/bleadapter"
)

// handoverChunk is the transfer size used by the handover command.
const handoverChunk = 20

// shell is the interactive command loop.
type shell struct {
	rl      *readline.Instance
	out     io.Writer
	adapter *bleadapter.Adapter
	app     *autoApp
	engine  ascs.Config
	info    ascs.ServerCodecInfo
	svc     *ble.Service
	links   map[string]*simLink
}

func newShell() (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ascs> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &shell{rl: rl, out: rl.Stdout(), links: make(map[string]*simLink)}, nil
}

func (s *shell) attach(a *bleadapter.Adapter, app *autoApp, engine ascs.Config, info ascs.ServerCodecInfo) {
	s.adapter = a
	s.app = app
	s.engine = engine
	s.info = info
	s.svc = a.Service()
	app.onConfigComplete = func(cid uint32) {
		fmt.Fprintf(s.out, "connection %d: client configuration complete\n", cid)
	}
}

// Run starts the command loop.
func (s *shell) Run() {
	defer s.rl.Close()

	s.printHelp()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		parts := strings.Fields(input)
		if s.dispatch(strings.ToLower(parts[0]), parts[1:]) {
			return
		}
		s.adapter.Do(func(srv *ascs.Server) { s.app.drain(srv) })
	}
}

// dispatch runs one command and reports whether the shell should exit.
func (s *shell) dispatch(cmd string, args []string) bool {
	switch cmd {
	case "help", "?":
		s.printHelp()
	case "status", "st":
		s.cmdStatus()
	case "connect", "c":
		s.cmdConnect(args)
	case "disconnect", "dc":
		s.cmdDisconnect(args)
	case "sub":
		s.cmdSubscribe(args)
	case "unsub":
		s.cmdUnsubscribe(args)
	case "write", "w":
		s.cmdWrite(args)
	case "read", "r":
		s.cmdRead(args)
	case "release":
		s.cmdRelease(args)
	case "release-complete", "rc":
		s.cmdReleaseComplete(args)
	case "cisloss":
		s.cmdCisLoss(args)
	case "reject":
		s.cmdReject(args)
	case "autorelease":
		s.cmdAutoRelease(args)
	case "handover", "ho":
		s.cmdHandover(args)
	case "quit", "exit", "q":
		for _, l := range s.links {
			l.Close()
		}
		fmt.Fprintln(s.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, `
ASCS Simulator Commands:
  Links:
    connect <addr>             - Connect a simulated client
    disconnect <addr>          - Drop a client link
    sub <addr>                 - Subscribe to every characteristic
    unsub <addr>               - End all subscriptions
    status                     - Show links and ASE states

  Client traffic:
    write <addr> <hex>         - Write a Control Point operation
    read <addr> <ase> [offset] - Read an ASE characteristic

  Server actions:
    release <addr> <ase>...    - Release ASEs
    release-complete <addr> <ase>... [cache]
                               - Finish releasing ASEs
    cisloss <addr> <ase>...    - Report loss of the isochronous stream
    reject <code|off>          - Reject operations with a response code
    autorelease <on|off>       - Finish releases automatically
    handover <addr>            - Transfer a connection to a new server

  Other:
    help                       - Show this help
    quit                       - Exit`)
}

func (s *shell) link(args []string, min int, usage string) *simLink {
	if len(args) < min {
		fmt.Fprintf(s.out, "Usage: %s\n", usage)
		return nil
	}
	l, ok := s.links[strings.ToUpper(args[0])]
	if !ok {
		fmt.Fprintf(s.out, "No link %s (use 'connect' first)\n", args[0])
		return nil
	}
	return l
}

func (s *shell) cid(l *simLink) (uint32, bool) {
	cid, ok := s.adapter.ConnectionID(l.addr)
	if !ok {
		fmt.Fprintf(s.out, "Link %s has no connection yet (read or subscribe first)\n", l.addr)
	}
	return cid, ok
}

func (s *shell) cmdStatus() {
	addrs := make([]string, 0, len(s.links))
	for addr := range s.links {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	if len(addrs) == 0 {
		fmt.Fprintln(s.out, "No links")
		return
	}
	cids := make(map[string]uint32, len(addrs))
	for _, addr := range addrs {
		if cid, ok := s.adapter.ConnectionID(addr); ok {
			cids[addr] = cid
		}
	}
	s.adapter.Do(func(srv *ascs.Server) {
		for _, addr := range addrs {
			cid, ok := cids[addr]
			if !ok {
				fmt.Fprintf(s.out, "%s: no connection\n", addr)
				continue
			}
			conn := srv.Connection(cid)
			if conn == nil {
				fmt.Fprintf(s.out, "%s: cid %d (removed)\n", addr, cid)
				continue
			}
			fmt.Fprintf(s.out, "%s: cid %d, control point %s\n", addr, cid, conn.ControlPointCCCD())
			printAses(s.out, conn.Snapshot())
		}
	})
}

func printAses(out io.Writer, ases []ascs.Ase) {
	for _, a := range ases {
		fmt.Fprintf(out, "  ASE %d (%s): %s, descriptor %s", a.ID, a.Direction(), a.State, a.CCCD)
		if a.Dynamic != nil && a.Dynamic.Qos != nil {
			fmt.Fprintf(out, ", CIG %d CIS %d", a.Dynamic.Qos.CigID, a.Dynamic.Qos.CisID)
		}
		fmt.Fprintln(out)
	}
}

func (s *shell) cmdConnect(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: connect <addr>")
		return
	}
	addr := strings.ToUpper(args[0])
	if _, ok := s.links[addr]; ok {
		fmt.Fprintf(s.out, "%s is already connected\n", addr)
		return
	}
	s.links[addr] = newSimLink(addr)
	fmt.Fprintf(s.out, "%s connected\n", addr)
}

func (s *shell) cmdDisconnect(args []string) {
	l := s.link(args, 1, "disconnect <addr>")
	if l == nil {
		return
	}
	l.Close()
	delete(s.links, l.addr)
	fmt.Fprintf(s.out, "%s disconnected\n", l.addr)
}

func (s *shell) cmdSubscribe(args []string) {
	l := s.link(args, 1, "sub <addr>")
	if l == nil {
		return
	}
	if len(l.subs) > 0 {
		fmt.Fprintf(s.out, "%s is already subscribed\n", l.addr)
		return
	}
	for i, c := range s.svc.Characteristics {
		label := fmt.Sprintf("ASE %d", i+1)
		if c.UUID.Equal(bleadapter.ControlPointUUID) {
			label = "control point"
		}
		ctx, cancel := context.WithCancel(context.Background())
		l.subs = append(l.subs, cancel)
		n := &printNotifier{ctx: ctx, out: s.out, addr: l.addr, label: label}
		go c.NotifyHandler.ServeNotify(ble.NewRequest(l, nil, 0), n)
	}
}

func (s *shell) cmdUnsubscribe(args []string) {
	if l := s.link(args, 1, "unsub <addr>"); l != nil {
		l.unsubscribe()
	}
}

func (s *shell) cmdWrite(args []string) {
	l := s.link(args, 2, "write <addr> <hex>")
	if l == nil {
		return
	}
	data, err := parseHex(args[1:])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid hex: %v\n", err)
		return
	}
	cp := s.svc.Characteristics[len(s.svc.Characteristics)-1]
	rsp := &bufferWriter{}
	cp.WriteHandler.ServeWrite(ble.NewRequest(l, data, 0), rsp)
	if rsp.status != ble.ErrSuccess {
		fmt.Fprintf(s.out, "Write failed: %s\n", ascs.ATTResult(rsp.status))
	}
}

func (s *shell) cmdRead(args []string) {
	l := s.link(args, 2, "read <addr> <ase> [offset]")
	if l == nil {
		return
	}
	id, err := parseAseID(args[1], len(s.svc.Characteristics)-1)
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}
	offset := 0
	if len(args) > 2 {
		if offset, err = strconv.Atoi(args[2]); err != nil || offset < 0 {
			fmt.Fprintf(s.out, "Invalid offset: %s\n", args[2])
			return
		}
	}
	rsp := &bufferWriter{}
	s.svc.Characteristics[id-1].ReadHandler.ServeRead(ble.NewRequest(l, nil, offset), rsp)
	if rsp.status != ble.ErrSuccess {
		fmt.Fprintf(s.out, "Read failed: %s\n", ascs.ATTResult(rsp.status))
		return
	}
	fmt.Fprintf(s.out, "ASE %d: % X\n", id, rsp.data)
}

// aseCommand resolves "<addr> <ase>..." and runs fn on the server.
func (s *shell) aseCommand(args []string, usage string, fn func(srv *ascs.Server, cid uint32, ids []uint8) error) {
	l := s.link(args, 2, usage)
	if l == nil {
		return
	}
	cid, ok := s.cid(l)
	if !ok {
		return
	}
	ids := make([]uint8, 0, len(args)-1)
	for _, arg := range args[1:] {
		id, err := parseAseID(arg, len(s.svc.Characteristics)-1)
		if err != nil {
			fmt.Fprintf(s.out, "%v\n", err)
			return
		}
		ids = append(ids, id)
	}
	var err error
	s.adapter.Do(func(srv *ascs.Server) { err = fn(srv, cid, ids) })
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *shell) cmdRelease(args []string) {
	s.aseCommand(args, "release <addr> <ase>...", func(srv *ascs.Server, cid uint32, ids []uint8) error {
		return srv.ReleaseRequest(cid, ids...)
	})
}

func (s *shell) cmdReleaseComplete(args []string) {
	cache := false
	if n := len(args); n > 0 && strings.EqualFold(args[n-1], "cache") {
		cache = true
		args = args[:n-1]
	}
	s.aseCommand(args, "release-complete <addr> <ase>... [cache]", func(srv *ascs.Server, cid uint32, ids []uint8) error {
		params := make([]ascs.ReleaseCompleteParams, len(ids))
		for i, id := range ids {
			params[i] = ascs.ReleaseCompleteParams{AseID: id, CacheCodec: cache}
		}
		return srv.ReleaseComplete(cid, params)
	})
}

func (s *shell) cmdCisLoss(args []string) {
	s.aseCommand(args, "cisloss <addr> <ase>...", func(srv *ascs.Server, cid uint32, ids []uint8) error {
		return srv.DisableRequest(cid, true, ids...)
	})
}

func (s *shell) cmdReject(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: reject <code|off>")
		return
	}
	if strings.EqualFold(args[0], "off") {
		s.adapter.Do(func(*ascs.Server) { s.app.reject = ascs.ResponseSuccess })
		fmt.Fprintln(s.out, "Operations accepted")
		return
	}
	code, err := strconv.ParseUint(args[0], 0, 8)
	if err != nil || code == 0 {
		fmt.Fprintf(s.out, "Invalid response code: %s\n", args[0])
		return
	}
	s.adapter.Do(func(*ascs.Server) { s.app.reject = ascs.ResponseCode(code) })
	fmt.Fprintf(s.out, "Operations rejected with %s\n", ascs.ResponseCode(code))
}

func (s *shell) cmdAutoRelease(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: autorelease <on|off>")
		return
	}
	on := strings.EqualFold(args[0], "on")
	s.adapter.Do(func(*ascs.Server) { s.app.releaseComplete = on })
	fmt.Fprintf(s.out, "Automatic release complete: %t\n", on)
}

// cmdHandover moves a connection to a freshly created server in small
// chunks and shows the rebuilt state.
func (s *shell) cmdHandover(args []string) {
	l := s.link(args, 1, "handover <addr>")
	if l == nil {
		return
	}
	cid, ok := s.cid(l)
	if !ok {
		return
	}

	peer, err := ascs.NewServer(s.engine, ascs.NopApplication{}, staticDefaults{info: s.info}, discardTransport{})
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}

	s.adapter.Do(func(srv *ascs.Server) {
		err = transfer(srv.Handover(), peer.Handover(), cid)
	})
	if err != nil {
		fmt.Fprintf(s.out, "Handover failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Connection %d handed over\n", cid)
	if conn := peer.Connection(cid); conn != nil {
		printAses(s.out, conn.Snapshot())
	}
}

// transfer runs a complete handover of cid from primary to secondary.
func transfer(primary, secondary ascs.Handover, cid uint32) error {
	if primary.Veto() {
		return fmt.Errorf("vetoed: an ASE is in a transient state")
	}
	buf := make([]byte, handoverChunk)
	for {
		done, n := primary.Marshal(cid, buf)
		if _, _, err := secondary.Unmarshal(cid, buf[:n]); err != nil {
			primary.Abort()
			secondary.Abort()
			return err
		}
		if done {
			break
		}
	}
	if err := secondary.Commit(cid, true); err != nil {
		primary.Abort()
		secondary.Abort()
		return err
	}
	if err := primary.Commit(cid, false); err != nil {
		return err
	}
	primary.Complete()
	secondary.Complete()
	return nil
}

// discardTransport backs the handover peer, which has no links.
type discardTransport struct{}

func (discardTransport) AccessResponse(uint32, uint16, ascs.ATTResult, []byte) {}
func (discardTransport) Notify(uint32, uint16, []byte)                         {}

func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.NewReplacer(":", "", "-", "", "0x", "").Replace(s)
	return hex.DecodeString(s)
}

func parseAseID(s string, maxAses int) (uint8, error) {
	id, err := strconv.ParseUint(s, 0, 8)
	if err != nil || id == 0 || int(id) > maxAses {
		return 0, fmt.Errorf("invalid ASE id %s (1..%d)", s, maxAses)
	}
	return uint8(id), nil
}
