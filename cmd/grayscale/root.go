package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gogpu/grayscale"
	_ "github.com/gogpu/grayscale/gpu" // register the gpu backend
	"github.com/gogpu/grayscale/internal/config"
	"github.com/gogpu/grayscale/internal/imageio"
)

const successMessage = "Grayscale image has been generated."

// app holds the state shared by the commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	config.SetDefaults(a.v)

	root := &cobra.Command{
		Use:   "grayscale [input [output]]",
		Short: "Convert a color image to grayscale on a GPU",
		Long: `grayscale computes the BT.601 luminance of every pixel of an image with a
compute kernel on the first GPU-class device, and writes the result as an
8-bit grayscale image.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runConvert,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is $HOME/.grayscale.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	pf.String(config.KeyBackend, "gpu", "conversion backend ("+strings.Join(grayscale.Backends(), ", ")+")")
	pf.String(config.KeyOrder, "bgr", "channel order handed to the kernel (bgr or rgb)")
	pf.Int(config.KeyQuality, imageio.DefaultQuality, "JPEG output quality (1-100)")
	pf.Duration(config.KeyTimeout, grayscale.DefaultTimeout, "maximum wait for the device")
	pf.Int(config.KeyWorkers, 0, "CPU backend workers (0 means GOMAXPROCS)")
	pf.Bool(config.KeyAllowSoftware, false, "accept CPU-class adapters during device selection")
	pf.StringSlice(config.KeyPlatforms, nil, "compute platforms to search, in order (vulkan, metal, dx12, gl, software)")
	pf.String(config.KeyLogLevel, "warn", "log level (debug, info, warn, error)")
	if err := bindFlags(a.v, root,
		config.KeyBackend, config.KeyOrder, config.KeyQuality, config.KeyTimeout, config.KeyWorkers,
		config.KeyAllowSoftware, config.KeyPlatforms, config.KeyLogLevel,
	); err != nil {
		panic(err)
	}

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		used, err := config.Init(a.v, a.cfgFile)
		if err != nil {
			return err
		}
		if used != "" {
			fmt.Fprintln(a.stderr, "Using config file:", used)
		}
		return nil
	}

	convert := &cobra.Command{
		Use:   "convert [input [output]]",
		Short: "Convert an image (the default command)",
		Args:  cobra.MaximumNArgs(2),
		RunE:  a.runConvert,
	}
	root.AddCommand(convert, newDevicesCmd(a), newVersionCmd(a))
	return root
}

// bindFlags binds each persistent flag of cmd named by keys to the viper
// key of the same name.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys ...string) error {
	for _, key := range keys {
		f := cmd.PersistentFlags().Lookup(key)
		if f == nil {
			return fmt.Errorf("bind flag %s: no such flag", key)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// logger returns the command logger writing text records to stderr.
func (a *app) logger(level slog.Level) *slog.Logger {
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

func (a *app) runConvert(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		a.v.Set(config.KeyInput, args[0])
	}
	if len(args) > 1 {
		a.v.Set(config.KeyOutput, args[1])
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	log := a.logger(cfg.LogLevel)
	grayscale.SetLogger(log)
	defer grayscale.SetLogger(nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	src, err := load(cfg.Input, cfg.Order)
	if err != nil {
		return err
	}
	log.Debug("image loaded", "path", cfg.Input, "width", src.Width, "height", src.Height, "order", src.Order)

	res, err := grayscale.Convert(ctx, src, cfg.Options()...)
	if err != nil {
		return err
	}
	if err := imageio.Save(cfg.Output, res, imageio.SaveOptions{Quality: cfg.Quality}); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, successMessage)
	return nil
}

func load(path string, order grayscale.ChannelOrder) (*grayscale.PixelBuffer, error) {
	if strings.EqualFold(filepath.Ext(path), ".bmp") {
		return imageio.LoadBMP(path, order)
	}
	return imageio.Load(path, order)
}

// execute runs the command line and returns the process exit status.
func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(context.Background()); err != nil {
		report(stderr, err)
		return 1
	}
	return 0
}

// report prints err the way a failed conversion step is reported.
func report(w io.Writer, err error) {
	var e *grayscale.Error
	if errors.As(err, &e) {
		if e.Log != "" {
			fmt.Fprintf(w, "Build log:\n%s\n", e.Log)
		}
		fmt.Fprintln(w, e.Diagnostic())
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}
