package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/born-ml/bilateral/internal/bilateral"
	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/tensor"
	"github.com/born-ml/bilateral/internal/volume"
)

type filterOptions struct {
	input      string
	shape      string
	output     string
	checkpoint string
	plot       bool
	sigmas     sigmaFlags
}

// sigmaFlags overrides configured sigmas with the flags that were set.
type sigmaFlags struct {
	x, y, z, color float64
}

func (s *sigmaFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&s.x, "sigma-x", 0, "spatial sigma along the first axis")
	cmd.Flags().Float64Var(&s.y, "sigma-y", 0, "spatial sigma along the second axis")
	cmd.Flags().Float64Var(&s.z, "sigma-z", 0, "spatial sigma along the third axis")
	cmd.Flags().Float64Var(&s.color, "sigma-r", 0, "range (colour) sigma")
}

func (s *sigmaFlags) apply(cmd *cobra.Command, base bilateral.Sigmas) bilateral.Sigmas {
	if cmd.Flags().Changed("sigma-x") {
		base.X = s.x
	}
	if cmd.Flags().Changed("sigma-y") {
		base.Y = s.y
	}
	if cmd.Flags().Changed("sigma-z") {
		base.Z = s.z
	}
	if cmd.Flags().Changed("sigma-r") {
		base.Color = s.color
	}
	return base
}

func newFilterCmd() *cobra.Command {
	opts := &filterOptions{}
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "filter a volume file, or a noisy phantom when no input is given",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFilter(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "", "volume to filter, .safetensors or raw little-endian float32")
	cmd.Flags().StringVar(&opts.shape, "shape", "", "input shape, e.g. 1,1,64,64,32 (required for raw input)")
	cmd.Flags().StringVar(&opts.output, "output", "", "write the filtered volume here")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "take the sigmas from a train checkpoint")
	cmd.Flags().BoolVar(&opts.plot, "plot", false, "plot a centre-line profile before and after")
	opts.sigmas.register(cmd)
	return cmd
}

// parseShape parses a comma separated list of positive dimensions.
func parseShape(s string) (tensor.Shape, error) {
	var shape tensor.Shape
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "shape %q", s)
		}
		shape = append(shape, n)
	}
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrapf(err, "shape %q", s)
	}
	return shape, nil
}

// loadInput reads --input, or builds the configured phantom with noise.
// The clean phantom is returned as reference, nil for file input.
func loadInput(e *env, opts *filterOptions) (input, reference *volume.Volume, err error) {
	if opts.input != "" {
		var shape tensor.Shape
		switch {
		case opts.shape != "":
			if shape, err = parseShape(opts.shape); err != nil {
				return nil, nil, err
			}
		case !volume.IsSafeTensors(opts.input):
			return nil, nil, errors.New("--shape is required with raw --input")
		}
		input, err = volume.ReadFile(opts.input, shape)
		return input, nil, err
	}

	train := e.cfg.Train
	clean, err := volume.Phantom(train.Size, train.Channels)
	if err != nil {
		return nil, nil, err
	}
	return clean.AddNoise(train.Noise, train.Seed), clean, nil
}

func runFilter(cmd *cobra.Command, opts *filterOptions) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.release()
	base := e.cfg.Filter.Sigmas
	if opts.checkpoint != "" {
		if base, err = nn.ReadSigmas(opts.checkpoint); err != nil {
			return err
		}
	}
	s := opts.sigmas.apply(cmd, base)

	input, reference, err := loadInput(e, opts)
	if err != nil {
		return err
	}
	x, err := volume.Tensor(input, e.compute())
	if err != nil {
		return err
	}

	res, err := e.dispatcher.Forward(x.Raw(), s)
	if err != nil {
		return err
	}
	filtered := volume.FromTensor(tensor.New[float32](res.Output, e.compute()))

	event := e.log.Info().Ints("shape", input.Shape).Interface("sigmas", s)
	if reference != nil {
		event = event.Float64("psnr_before", input.PSNR(reference)).Float64("psnr_after", filtered.PSNR(reference))
	}
	event.Msg("filtered volume")

	if opts.output != "" {
		if err := filtered.WriteFile(opts.output); err != nil {
			return err
		}
		e.log.Info().Str("path", opts.output).Msg("wrote volume")
	}
	if opts.plot {
		plotProfiles(cmd.OutOrStdout(), input, filtered)
	}
	return e.dumpMetrics(cmd.OutOrStdout())
}

func plotProfiles(w io.Writer, before, after *volume.Volume) {
	graph := asciigraph.PlotMany([][]float64{before.Profile(0), after.Profile(0)},
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.Caption("centre line, channel 0 (red: input, green: filtered)"),
	)
	fmt.Fprintln(w, graph)
}
