package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/aptgraph/aptgraph/sdk"
)

func newInspectCmd() *cobra.Command {
	req := sdk.AnalyzeRequest{
		FeatureWeights:        []float64{1},
		FeatureOrderedWeights: []float64{1},
		MaxClusterSizeTemp:    10,
		RankingWeights:        [3]float64{0, 1, 0},
		StudyMode:             true,
	}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Browse a ranking interactively",
		Long:  "inspect runs one analyze query and opens a terminal UI for scrolling the resulting ranking buckets and their member domains.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SessionID = sessionID

			c, err := sdk.Dial(cmd.Context(), "stdio", serverCmd, serverArgs)
			if err != nil {
				return err
			}
			defer c.Close()

			out, err := c.Analyze(cmd.Context(), req)
			if err != nil {
				return err
			}
			if len(out.Ranking) == 0 {
				fmt.Println("no ranked domains to inspect")
				return nil
			}

			p := tea.NewProgram(newInspectModel(out))
			_, err = p.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&req.User, "user", "", "user IP or subnet sentinel (required)")
	cmd.Flags().Float64SliceVar(&req.FeatureWeights, "feature-weights", req.FeatureWeights, "per-feature fusion weights, must sum to 1")
	cmd.Flags().Float64Var(&req.MaxClusterSizeTemp, "max-cluster-size", req.MaxClusterSizeTemp, "largest cluster size kept")
	cmd.Flags().BoolVar(&req.WhitelistBool, "whitelist", false, "drop whitelisted domains and any domain a selected user requested fewer than min-requests times")
	cmd.Flags().Float64Var(&req.NumberRequests, "min-requests", 0, "minimum per-user request count for whitelist suppression")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

var (
	inspectSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	inspectHeaderStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	inspectHelpStyle     = lipgloss.NewStyle().Faint(true)
)

// inspectModel walks sdk.AnalyzeResult.Ranking, one bucket at a time.
type inspectModel struct {
	ranking []sdk.IndexBucket
	apt     *sdk.AptReport
	cursor  int
}

func newInspectModel(out *sdk.AnalyzeResult) inspectModel {
	return inspectModel{ranking: out.Ranking, apt: out.Apt}
}

func (m inspectModel) Init() tea.Cmd { return nil }

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.ranking)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m inspectModel) View() string {
	var b string
	b += inspectHeaderStyle.Render(fmt.Sprintf("ranking (%d buckets)", len(m.ranking))) + "\n\n"

	for i, bucket := range m.ranking {
		line := fmt.Sprintf("%8.4f  %v", bucket.Index, bucket.Names)
		if i == m.cursor {
			line = inspectSelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b += line + "\n"
	}

	if m.apt != nil && m.apt.Found {
		b += "\n" + fmt.Sprintf(".apt domains at top %.2f%%: %v\n", m.apt.TopPercent, m.apt.AptDomains)
	}

	b += "\n" + inspectHelpStyle.Render("↑/↓ move · q quit")
	return b
}
