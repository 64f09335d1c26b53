package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	devqa "github.com/devqa/devqa.go"
	"github.com/devqa/devqa.go/pkg/bridge"
	"github.com/devqa/devqa.go/pkg/metrics"
)

type ServeOptions struct {
	*RootOptions
	Addr        string
	TokenSecret string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the UI bridge",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides bridge_addr)")
	cmd.Flags().StringVar(&opts.TokenSecret, "token-secret", "", "HS256 secret for ID tokens; empty trusts the auth provider")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log, err := opts.newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	con, err := devqa.Dial(cfg, log, m)
	if err != nil {
		return err
	}
	o := devqa.OptionsFromConfig(cfg)
	o.Logger = log
	o.Metrics = m
	sess := devqa.NewSession(con, o)
	defer sess.Close(cmd.Context())

	var secret []byte
	if opts.TokenSecret != "" {
		secret = []byte(opts.TokenSecret)
	}
	srv := bridge.New(sess, bridge.Config{Gatherer: reg, TokenSecret: secret, Logger: log})
	addr := cfg.BridgeAddr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	return srv.ListenAndServe(cmd.Context(), addr)
}
