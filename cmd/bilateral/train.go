package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/born-ml/bilateral/internal/autodiff"
	"github.com/born-ml/bilateral/internal/config"
	"github.com/born-ml/bilateral/internal/nn"
	"github.com/born-ml/bilateral/internal/optim"
	"github.com/born-ml/bilateral/internal/tensor"
	"github.com/born-ml/bilateral/internal/volume"
)

type trainOptions struct {
	epochs     int
	lr         float64
	optimizer  string
	save       string
	checkpoint string
	plot       bool
	sigmas     sigmaFlags
}

func newTrainCmd() *cobra.Command {
	opts := &trainOptions{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "fit the filter sigmas to denoise a synthetic phantom",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrain(cmd, opts)
		},
	}
	cmd.Flags().IntVar(&opts.epochs, "epochs", 0, "training epochs (default from config)")
	cmd.Flags().Float64Var(&opts.lr, "lr", 0, "learning rate (default from config)")
	cmd.Flags().StringVar(&opts.optimizer, "optimizer", "", "adam or sgd (default from config)")
	cmd.Flags().StringVar(&opts.save, "save", "", "write the config with the learned sigmas here")
	cmd.Flags().StringVar(&opts.checkpoint, "checkpoint", "", "write a .safetensors checkpoint of the learned sigmas here")
	cmd.Flags().BoolVar(&opts.plot, "plot", false, "plot the loss curve")
	opts.sigmas.register(cmd)
	return cmd
}

func (o *trainOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if o.epochs > 0 {
		cfg.Train.Epochs = o.epochs
	}
	if o.lr > 0 {
		cfg.Train.LR = o.lr
	}
	if o.optimizer != "" {
		cfg.Train.Optimizer = o.optimizer
	}
	cfg.Filter.Sigmas = o.sigmas.apply(cmd, cfg.Filter.Sigmas)
	return cfg.Validate()
}

func runTrain(cmd *cobra.Command, opts *trainOptions) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.release()
	cfg := e.cfg
	if err := opts.apply(cmd, cfg); err != nil {
		return err
	}

	clean, err := volume.Phantom(cfg.Train.Size, cfg.Train.Channels)
	if err != nil {
		return err
	}
	noisy := clean.AddNoise(cfg.Train.Noise, cfg.Train.Seed)

	backend := autodiff.New(e.compute())
	x, err := volume.Tensor(noisy, backend)
	if err != nil {
		return err
	}
	target, err := volume.Tensor(clean, backend)
	if err != nil {
		return err
	}

	filter := nn.NewBilateralFilter(e.dispatcher, cfg.Filter.Sigmas, backend)
	optimizer, err := optim.New(cfg.Train.Optimizer, filter.Parameters(), float32(cfg.Train.LR), backend)
	if err != nil {
		return err
	}
	mse := nn.NewMSELoss(backend)

	e.log.Info().
		Str("backend", backend.Name()).
		Str("optimizer", cfg.Train.Optimizer).
		Ints("shape", noisy.Shape).
		Float64("psnr_noisy", noisy.PSNR(clean)).
		Msg("training")

	losses, err := fit(e, filter, optimizer, mse, x, target, cfg)
	if err != nil {
		return err
	}

	out, err := filter.Forward(x)
	if err != nil {
		return err
	}
	learned := filter.Sigmas()
	e.log.Info().
		Interface("sigmas", learned).
		Float64("psnr_filtered", volume.FromTensor(out).PSNR(clean)).
		Msg("training done")

	if opts.save != "" {
		cfg.Filter.Sigmas = learned
		if err := config.Save(opts.save, cfg); err != nil {
			return err
		}
		e.log.Info().Str("path", opts.save).Msg("saved learned sigmas")
	}
	if opts.checkpoint != "" {
		ckpt := &nn.Checkpoint[trainBackend]{
			Filter:    filter,
			Optimizer: cfg.Train.Optimizer,
			LR:        optimizer.GetLR(),
			Epoch:     len(losses),
			Loss:      losses[len(losses)-1],
		}
		if err := ckpt.Save(opts.checkpoint); err != nil {
			return err
		}
		e.log.Info().Str("path", opts.checkpoint).Msg("wrote checkpoint")
	}
	if opts.plot {
		fmt.Fprintln(cmd.OutOrStdout(), asciigraph.Plot(losses,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("mse per epoch"),
		))
	}
	return e.dumpMetrics(cmd.OutOrStdout())
}

type trainBackend = *autodiff.AutodiffBackend[tensor.Backend]

// fit runs the training loop and returns the loss of every epoch.
func fit(
	e *env,
	filter *nn.BilateralFilter[trainBackend],
	optimizer optim.Optimizer,
	mse *nn.MSELoss[trainBackend],
	x, target *tensor.Tensor[float32, trainBackend],
	cfg *config.Config,
) ([]float64, error) {
	backend := x.Backend()
	tape := backend.Tape()
	tape.StartRecording()
	defer tape.StopRecording()

	losses := make([]float64, 0, cfg.Train.Epochs)
	for epoch := 1; epoch <= cfg.Train.Epochs; epoch++ {
		tape.Clear()
		out, err := filter.Forward(x)
		if err != nil {
			return nil, err
		}
		loss := mse.Forward(out, target)
		grads := autodiff.Backward(loss, backend)

		optimizer.Step(grads)
		optimizer.ZeroGrad()
		filter.ClampSigmas(float32(cfg.Train.MinSigma))

		value := float64(loss.Item())
		losses = append(losses, value)
		s := filter.Sigmas()
		e.log.Info().
			Int("epoch", epoch).
			Float64("loss", value).
			Float64("sigma_x", s.X).
			Float64("sigma_y", s.Y).
			Float64("sigma_z", s.Z).
			Float64("sigma_r", s.Color).
			Msg("epoch")
	}
	return losses, nil
}
