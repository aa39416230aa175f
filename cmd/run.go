package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"firestige.xyz/actionengine/internal/config"
	"firestige.xyz/actionengine/internal/filter"
	"firestige.xyz/actionengine/internal/log"
	"firestige.xyz/actionengine/internal/metrics"
	"firestige.xyz/actionengine/internal/pipeline"
	"firestige.xyz/actionengine/internal/sink/console"
	sinkfile "firestige.xyz/actionengine/internal/sink/file"
	"firestige.xyz/actionengine/internal/source/afpacket"
	sourcefile "firestige.xyz/actionengine/internal/source/file"
)

var (
	runPcapIn  string
	runPcapOut string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the action program over captured packets",
	Long: `
Run the configured action program over packets from the configured source
until the source is exhausted or the process is interrupted.

Examples:
  actionengine run -c config.yml                           # source and sink from config
  actionengine run -c config.yml --pcap in.pcap            # replay a capture file
  actionengine run -c config.yml --pcap in.pcap --out out.pcap
`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		opts := runOptions{configPath: configFile, pcapIn: runPcapIn, pcapOut: runPcapOut}
		if err := runEngine(ctx, opts, os.Stdout); err != nil {
			exitWithError("run failed", err)
		}
	},
}

func init() {
	runCmd.Flags().StringVar(&runPcapIn, "pcap", "", "read frames from this pcap/pcapng file")
	runCmd.Flags().StringVar(&runPcapOut, "out", "", "write emitted packets to this pcap file")
}

type runOptions struct {
	configPath string
	pcapIn     string
	pcapOut    string
}

// digestLogger reports digests through the process logger when the sink
// cannot carry them.
type digestLogger struct {
	log log.Logger
}

func (d digestLogger) Receive(dg pipeline.Digest) error {
	fields := make(map[string]interface{}, len(dg.Fields)+2)
	for k, v := range dg.Fields {
		fields[k] = v
	}
	fields["learn_id"] = dg.LearnID
	fields["packet"] = dg.PacketID
	d.log.WithFields(fields).Info("digest")
	return nil
}

func runEngine(ctx context.Context, opts runOptions, w io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.pcapIn != "" {
		cfg.Source.Type = config.SourceFile
		cfg.Source.Path = opts.pcapIn
	}
	if opts.pcapOut != "" {
		cfg.Sink.Type = config.SinkFile
		cfg.Sink.Path = opts.pcapOut
	}

	log.Init(&cfg.Log)
	logger := log.GetLogger()

	_, prog, err := loadProgram(cfg.Program)
	if err != nil {
		return err
	}

	src, err := newSource(cfg.Source)
	if err != nil {
		return err
	}

	pcfg := pipeline.ConfigFrom(cfg.Pipeline, prog)
	closeSink, err := attachSink(&pcfg, cfg.Sink, w)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			logger.WithError(err).Error("failed to close sink")
		}
	}()

	p, err := pipeline.New(pcfg)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		err := prometheus.Register(metrics.NewCounterCollector(prog.Store.CounterArrays))
		var already prometheus.AlreadyRegisteredError
		if err != nil && !errors.As(err, &already) {
			return fmt.Errorf("failed to register counter collector: %w", err)
		}
		server := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Stop(context.Background())
	}

	start := time.Now()
	if err := p.Run(ctx, src); err != nil {
		return err
	}
	printStats(w, p.Stats(), time.Since(start))
	return nil
}

func newSource(sc config.SourceConfig) (pipeline.Source, error) {
	switch sc.Type {
	case config.SourceAFPacket:
		raw, err := filter.Parse(sc.Filter)
		if err != nil {
			return nil, err
		}
		return afpacket.NewSource(afpacket.Config{
			Device:       sc.Device,
			SnapLen:      sc.SnapLen,
			BufferSizeMB: sc.BufferSizeMB,
			TimeoutMs:    sc.TimeoutMs,
			FanoutID:     sc.FanoutID,
			Filter:       raw,
			Port:         sc.Port,
		})
	default:
		f, err := filter.Compile(sc.Filter)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return sourcefile.NewSource(sc.Path, sc.Port, nil)
		}
		return sourcefile.NewSource(sc.Path, sc.Port, f)
	}
}

// attachSink sets the emitter and digest receiver of pc and returns the
// function closing them.
func attachSink(pc *pipeline.Config, sc config.SinkConfig, w io.Writer) (func() error, error) {
	switch sc.Type {
	case config.SinkFile:
		s, err := sinkfile.NewSink(sc.Path, sc.SnapLen)
		if err != nil {
			return nil, err
		}
		pc.Emitter = s
		pc.Digests = digestLogger{log: log.GetLogger().WithField("pipeline", pc.Name)}
		return s.Close, nil
	default:
		s := console.NewSink(w)
		pc.Emitter = s
		pc.Digests = s
		return s.Close, nil
	}
}

func printStats(w io.Writer, st pipeline.Stats, elapsed time.Duration) {
	fmt.Fprintf(w, "received=%d emitted=%d dropped=%d cloned=%d resubmitted=%d recirculated=%d digests=%d suppressed=%d emit_errors=%d elapsed=%s\n",
		st.Received, st.Emitted, st.Dropped, st.Cloned, st.Resubmitted, st.Recirculated,
		st.Digests, st.DigestsSuppressed, st.EmitErrors, elapsed.Round(time.Millisecond))
}
