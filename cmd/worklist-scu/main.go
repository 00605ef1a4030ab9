// Command worklist-scu queries a Modality Worklist SCP and reports performed
// procedure steps back to it.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/caio-sobreiro/dicomworklist/client"
	"github.com/caio-sobreiro/dicomworklist/dicom"
)

// Secondary Capture Image Storage, used for the images reported in N-SET.
const secondaryCaptureSOPClass = "1.2.840.10008.5.1.4.1.1.7"

type options struct {
	addr      string
	callingAE string
	calledAE  string
	timeout   time.Duration
	verbose   bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "worklist-scu",
		Short:         "DICOM Modality Worklist and MPPS client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:8005", "SCP host:port")
	cmd.PersistentFlags().StringVar(&opts.callingAE, "calling-ae", "WLSCU", "AE title of this client")
	cmd.PersistentFlags().StringVar(&opts.calledAE, "called-ae", "QRSCP", "AE title of the SCP")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "connect and read timeout")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log protocol activity")

	cmd.AddCommand(echoCmd(opts), findCmd(opts), mppsCmd(opts))
	return cmd
}

func (o *options) connect(cmd *cobra.Command) (*client.Association, error) {
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	return client.ConnectContext(cmd.Context(), o.addr, client.Config{
		CallingAETitle: o.callingAE,
		CalledAETitle:  o.calledAE,
		ConnectTimeout: o.timeout,
		ReadTimeout:    o.timeout,
		WriteTimeout:   o.timeout,
		Logger:         logger,
	})
}

func echoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "echo",
		Short: "Verify the connection with C-ECHO",
		RunE: func(cmd *cobra.Command, args []string) error {
			assoc, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer assoc.Close()

			start := time.Now()
			if err := assoc.Echo(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "C-ECHO %s@%s ok in %s\n", opts.calledAE, opts.addr, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func addFilterFlags(cmd *cobra.Command, f *client.WorklistFilter) {
	cmd.Flags().StringVar(&f.StationAETitle, "station", "", "scheduled station AE title")
	cmd.Flags().StringVar(&f.Modality, "modality", "", "modality, e.g. MR")
	cmd.Flags().StringVar(&f.Date, "date", "", "scheduled date or range, e.g. 20240101-20240107")
	cmd.Flags().StringVar(&f.PatientName, "patient-name", "", "patient name, '*' wildcards allowed")
	cmd.Flags().StringVar(&f.PatientID, "patient-id", "", "patient ID")
}

func findCmd(opts *options) *cobra.Command {
	var filter client.WorklistFilter
	cmd := &cobra.Command{
		Use:   "find",
		Short: "List scheduled procedure steps with C-FIND",
		RunE: func(cmd *cobra.Command, args []string) error {
			assoc, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer assoc.Close()

			items, err := assoc.FindWorklist(client.NewWorklistQuery(filter))
			if err != nil {
				return err
			}
			printWorklist(cmd.OutOrStdout(), items)
			return nil
		},
	}
	addFilterFlags(cmd, &filter)
	return cmd
}

func printWorklist(w io.Writer, items []*dicom.Dataset) {
	fmt.Fprintf(w, "%-12s %-24s %-10s %-8s %-8s %-6s %-16s %s\n",
		"ACCESSION", "PATIENT", "ID", "DATE", "TIME", "MOD", "STATION", "STEP")
	for _, item := range items {
		step := item.FirstItem(dicom.ScheduledProcedureStepSequence)
		if step == nil {
			step = dicom.NewDataset()
		}
		fmt.Fprintf(w, "%-12s %-24s %-10s %-8s %-8s %-6s %-16s %s\n",
			item.GetString(dicom.AccessionNumber),
			item.GetString(dicom.PatientName),
			item.GetString(dicom.PatientID),
			step.GetString(dicom.ScheduledProcedureStepStartDate),
			step.GetString(dicom.ScheduledProcedureStepStartTime),
			step.GetString(dicom.Modality),
			step.GetString(dicom.ScheduledStationAETitle),
			step.GetString(dicom.ScheduledProcedureStepID),
		)
	}
	fmt.Fprintf(w, "%d item(s)\n", len(items))
}

func mppsCmd(opts *options) *cobra.Command {
	var (
		filter      client.WorklistFilter
		station     client.Station
		images      int
		doseComment string
		discontinue string
	)
	cmd := &cobra.Command{
		Use:   "mpps",
		Short: "Start the first matching step with N-CREATE, then complete or discontinue it with N-SET",
		RunE: func(cmd *cobra.Command, args []string) error {
			assoc, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer assoc.Close()

			items, err := assoc.FindWorklist(client.NewWorklistQuery(filter))
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return errors.New("no worklist item matches")
			}
			item := items[0]
			if station.AETitle == "" {
				station.AETitle = opts.callingAE
			}

			out := cmd.OutOrStdout()
			instanceUID, err := assoc.CreateProcedureStep(dicom.NewUID(), client.InProgressDataset(item, station, time.Now()))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "N-CREATE %s IN PROGRESS for accession %s\n", instanceUID, item.GetString(dicom.AccessionNumber))

			if discontinue != "" {
				if err := assoc.SetProcedureStep(instanceUID, client.DiscontinuedDataset(time.Now(), discontinue)); err != nil {
					return err
				}
				fmt.Fprintf(out, "N-SET %s DISCONTINUED: %s\n", instanceUID, discontinue)
				return nil
			}

			series := performedSeries(images, opts.callingAE)
			if err := assoc.SetProcedureStep(instanceUID, client.CompletedDataset(item, time.Now(), doseComment, series)); err != nil {
				return err
			}
			fmt.Fprintf(out, "N-SET %s COMPLETED with %d image(s)\n", instanceUID, images)
			return nil
		},
	}
	addFilterFlags(cmd, &filter)
	cmd.Flags().StringVar(&station.Name, "station-name", "", "performing station name")
	cmd.Flags().StringVar(&station.Location, "location", "", "performing location")
	cmd.Flags().IntVar(&images, "images", 1, "number of images to report as acquired")
	cmd.Flags().StringVar(&doseComment, "dose-comment", "", "comments on radiation dose")
	cmd.Flags().StringVar(&discontinue, "discontinue", "", "discontinue with this reason instead of completing")
	return cmd
}

// performedSeries describes one acquired series of n generated images.
func performedSeries(n int, retrieveAE string) client.PerformedSeries {
	s := client.PerformedSeries{
		SeriesInstanceUID: dicom.NewUID(),
		Description:       "worklist-scu series",
		RetrieveAETitle:   retrieveAE,
	}
	for range n {
		s.Images = append(s.Images, client.PerformedImage{
			SOPClassUID:    secondaryCaptureSOPClass,
			SOPInstanceUID: dicom.NewUID(),
		})
	}
	return s
}
