package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/asticode/go-astits"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <segment-file>",
	Short: "Diagnose a downloaded TS segment's PAT/PMT structure",
	Long: `Inspect feeds a downloaded .ts segment file through a PSI-aware
MPEG-TS demuxer (PAT/PMT walk) purely to print program, PID and codec
information for troubleshooting.

It never touches the restreaming hot path — corerelay's pipeline
intentionally classifies PIDs without a PAT/PMT walk and replays packets
byte-for-byte — but it gives operators an independent way to cross-check
the PID filter's own classification against a standards-following demuxer.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening segment file: %w", err)
	}
	defer f.Close()

	dmx := astits.NewDemuxer(context.Background(), f, astits.DemuxerOptPacketSize(188))

	programs := map[uint16]uint16{} // program number -> PMT PID
	for {
		data, err := dmx.NextData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("demuxing: %w", err)
		}

		switch {
		case data.PAT != nil:
			for _, program := range data.PAT.Programs {
				if program.ProgramMapID == 0 {
					continue
				}
				programs[program.ProgramNumber] = program.ProgramMapID
				fmt.Printf("PAT: program %d -> PMT PID %d\n", program.ProgramNumber, program.ProgramMapID)
			}
		case data.PMT != nil:
			fmt.Printf("PMT: program %d, PCR PID %d\n", data.PMT.ProgramNumber, data.PMT.PCRPID)
			for _, es := range data.PMT.ElementaryStreams {
				fmt.Printf("  elementary stream: PID %d, stream type %v\n", es.ElementaryPID, es.StreamType)
			}
		}
	}

	if len(programs) == 0 {
		fmt.Println("no PAT found in segment")
	}
	return nil
}
