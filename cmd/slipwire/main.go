package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tosscaster/slipwire/internal/framer"
	"github.com/tosscaster/slipwire/internal/metrics"
	"github.com/tosscaster/slipwire/internal/serial"
	"github.com/tosscaster/slipwire/internal/slip"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultBaudRate = 115200

var (
	portFlag        string
	baudFlag        int
	chunkFlag       int
	drainFlag       bool
	bufferFlag      int
	metricsAddrFlag string
	verboseFlag     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "slipwire",
		Short: "SLIP framing over serial ports",
		Long: `Slipwire speaks RFC 1055 SLIP over a serial line: it frames
outgoing payloads with escape sequences and a terminator byte, and
reassembles the incoming byte stream into discrete messages.`,
	}

	// Send command
	sendCmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Send a file as SLIP frames",
		Long: `Send the contents of a file over the serial port, split into
one SLIP frame per chunk of --chunk bytes.`,
		Args: cobra.ExactArgs(1),
		RunE: runSend,
	}
	sendCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (required)")
	sendCmd.Flags().IntVarP(&baudFlag, "baud", "b", defaultBaudRate, "Baud rate")
	sendCmd.Flags().IntVar(&chunkFlag, "chunk", slip.DefaultMaxMessageLength, "Payload bytes per frame")
	sendCmd.Flags().BoolVar(&drainFlag, "drain", false, "Wait for each frame to be fully transmitted")
	sendCmd.MarkFlagRequired("port")

	// Monitor command
	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Decode and print incoming SLIP frames",
		Long: `Monitor reads the serial port until interrupted, reassembles the
incoming byte stream, and prints each decoded message as a hex dump.
Malformed and oversized frames are dropped and counted.`,
		RunE: runMonitor,
	}
	monitorCmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (required)")
	monitorCmd.Flags().IntVarP(&baudFlag, "baud", "b", defaultBaudRate, "Baud rate")
	monitorCmd.Flags().IntVar(&bufferFlag, "buffer", slip.DefaultBufferSize, "Accumulation buffer capacity in bytes")
	monitorCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	monitorCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log dropped frames")
	monitorCmd.MarkFlagRequired("port")

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("slipwire %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	rootCmd.AddCommand(sendCmd, monitorCmd, versionCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	payloadPath := args[0]

	data, err := os.ReadFile(payloadPath)
	if err != nil {
		return fmt.Errorf("failed to read payload file: %w", err)
	}
	if chunkFlag <= 0 {
		return fmt.Errorf("invalid chunk size %d", chunkFlag)
	}

	proto, err := slip.NewProtocol(slip.WithMaxMessageLength(chunkFlag))
	if err != nil {
		return err
	}

	port, err := serial.Open(portFlag, baudFlag)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer port.Close()

	fmt.Printf("Port: %s @ %d baud\n", portFlag, baudFlag)
	fmt.Printf("Payload: %s (%d bytes, %d bytes per frame)\n", payloadPath, len(data), chunkFlag)

	f := framer.New(port, framer.WithProtocol(proto))

	totalFrames := (len(data) + chunkFlag - 1) / chunkFlag
	bar := progressbar.NewOptions(totalFrames,
		progressbar.OptionSetDescription("Sending"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	for seq := 0; seq < totalFrames; seq++ {
		start := seq * chunkFlag
		end := start + chunkFlag
		if end > len(data) {
			end = len(data)
		}

		if drainFlag {
			err = f.SendAndDrain(data[start:end])
		} else {
			err = f.Send(data[start:end])
		}
		if err != nil {
			return fmt.Errorf("failed to send frame %d: %w", seq, err)
		}

		bar.Set(seq + 1)
	}

	bar.Finish()
	fmt.Printf("Sent %d frame(s)\n", totalFrames)
	return nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	level := zerolog.WarnLevel
	if verboseFlag {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Str("port", portFlag).Logger()

	port, err := serial.Open(portFlag, baudFlag)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer port.Close()

	opts := []framer.Option{
		framer.WithLogger(log),
		framer.WithBufferSize(bufferFlag),
	}
	if metricsAddrFlag != "" {
		opts = append(opts, framer.WithRecorder(metrics.New()))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(metricsAddrFlag, mux); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		log.Info().Str("addr", metricsAddrFlag).Msg("serving metrics")
	}

	f := framer.New(port, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Monitoring %s @ %d baud (Ctrl-C to stop)\n", portFlag, baudFlag)

	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	count := 0
	for msg := range f.Messages() {
		count++
		fmt.Printf("%s  #%-5d %4d bytes  % X\n",
			time.Now().Format("15:04:05.000"), count, len(msg), msg)
	}

	err = <-done
	stats := f.Stats()
	fmt.Printf("\n%d message(s), %d malformed, %d overflow(s)\n",
		stats.Messages, stats.Malformed, stats.Overflows)

	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	return nil
}
