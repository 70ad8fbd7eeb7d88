package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/born-ml/bilateral/internal/backend/webgpu"
	"github.com/born-ml/bilateral/internal/tensor"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 2)
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "show backends, GPU limits and CPU features",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.release()
			fmt.Fprintln(cmd.OutOrStdout(), renderInfo(e))
			return e.dumpMetrics(cmd.OutOrStdout())
		},
	}
}

func yesNo(ok bool) string {
	if ok {
		return okStyle.Render("yes")
	}
	return offStyle.Render("no")
}

// routeOf reports where a small volume resident on device would be filtered.
func routeOf(e *env, device tensor.Device) string {
	probe, err := tensor.NewRaw(tensor.Shape{1, 1, 1}, tensor.Float32, device)
	if err != nil {
		return err.Error()
	}
	k, err := e.dispatcher.Select(probe)
	if err != nil {
		return offStyle.Render(err.Error())
	}
	return k.Name()
}

func renderInfo(e *env) string {
	features := e.cpu.Features()
	par := e.cpu.Parallel()
	limits := e.dispatcher.Limits()

	rows := [][2]string{
		{"version", version},
		{"backend", e.dispatcher.Preference().String()},
		{"cpu", features.String()},
		{"cpu workers", fmt.Sprintf("%d (parallel %s)", par.NumWorkers, yesNo(par.Enabled))},
		{"gpu compiled", yesNo(e.dispatcher.GPUCompiled())},
		{"gpu available", yesNo(e.dispatcher.GPUAvailable())},
	}
	if e.gpu != nil {
		stats := e.gpu.MemoryStats()
		rows = append(rows,
			[2]string{"gpu adapter", e.gpu.AdapterName()},
			[2]string{"gpu memory", fmt.Sprintf("%d bytes peak, %d buffers", stats.PeakMemoryBytes, stats.ActiveBuffers)},
		)
	}
	rows = append(rows, [2]string{"gpu tensors run", routeOf(e, tensor.WebGPU)})
	rows = append(rows,
		[2]string{"max channels", fmt.Sprintf("%d", limits.MaxChannels)},
		[2]string{"max spatial", fmt.Sprintf("%d", limits.MaxSpatialDims)},
		[2]string{"shader limit", fmt.Sprintf("%d channels", webgpu.MaxChannels)},
	)

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(r[0]), valueStyle.Render(r[1])))
	}
	return boxStyle.Render(headerStyle.Render("bilateral") + "\n" + strings.Join(lines, "\n"))
}
