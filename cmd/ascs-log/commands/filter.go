package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/mash-protocol/ascs-go/pkg/log"
)

// RunFilter copies the events of path matching filter to a new capture at
// output, which may then be read by any other command.
func RunFilter(path, output string, filter log.Filter, w io.Writer) error {
	if output == "" {
		return errors.New("output file required")
	}
	if output == path {
		return errors.New("output file must differ from the input")
	}

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return fmt.Errorf("create %s: %w", output, err)
	}
	defer logger.Close()

	err = log.Scan(path, filter, func(event log.Event) error {
		logger.Log(event)
		return nil
	})
	if err != nil {
		return fmt.Errorf("filter %s: %w", path, err)
	}

	written, failed := logger.Counts()
	if failed > 0 {
		return fmt.Errorf("%d events could not be written to %s", failed, output)
	}
	fmt.Fprintf(w, "Kept %d events in %s\n", written, output)
	return nil
}
