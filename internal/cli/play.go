package cli

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/phylomorph/pkg/animate"
	"github.com/matzehuels/phylomorph/pkg/diff"
	"github.com/matzehuels/phylomorph/pkg/morph"
	"github.com/matzehuels/phylomorph/pkg/pipeline"
	"github.com/matzehuels/phylomorph/pkg/render/sink"
)

const (
	// playRefresh is how often the view and the live frame file are refreshed.
	playRefresh = 100 * time.Millisecond

	// scrubSteps is the number of arrow presses that cross one transition.
	scrubSteps = 10

	barWidth = 40
)

// playCommand creates the interactive player.
func (c *CLI) playCommand() *cobra.Command {
	var (
		output    string
		leafOrder string
		duration  time.Duration
	)
	flags := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "play [trees]",
		Short: "Scrub and play the morph interactively",
		Long: `Scrub and play the morph interactively.

The player shows the timeline of the run and the state of the transition
under the playhead. The frame under the playhead is written to --output
(an SVG file a browser or image viewer can reload) while you play.

Keys: space play/pause, r reverse, ←/→ scrub, [/] previous/next tree,
home/end jump to the ends, q quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.LeafOrder = parseList(leafOrder)
			opts := c.options(cmd, flags)
			opts.Source = args[0]
			opts.Formats = []string{string(sink.FormatSVG)}
			if err := opts.ValidateAndSetDefaults(); err != nil {
				return err
			}
			if output == "" {
				output = basePath("", opts.Source) + "_live.svg"
			}
			return c.runPlay(cmd.Context(), opts, output, duration)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "live frame file (default: <input>_live.svg)")
	cmd.Flags().DurationVar(&duration, "duration", animate.DefaultTransitionDuration, "playback time of one transition")
	cmd.Flags().StringVar(&flags.Ease, "ease", pipeline.DefaultEase, "easing: "+strings.Join(easeNames(), ", "))
	addLoadFlags(cmd, &flags, &leafOrder)
	addLayoutFlags(cmd, &flags)
	cmd.Flags().Float64Var(&flags.StrokeWidth, "stroke-width", pipeline.DefaultStrokeWidth, "branch stroke width")
	cmd.Flags().Float64Var(&flags.FontSizeEm, "font-size", pipeline.DefaultFontSizeEm, "label font size in em")
	cmd.Flags().StringVar(&flags.Background, "background", "", "background colour (default white)")

	return cmd
}

func (c *CLI) runPlay(ctx context.Context, opts pipeline.Options, output string, duration time.Duration) error {
	runner, err := c.newRunner(ctx, false)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	trees, _, err := runner.Load(ctx, opts)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.Source, err)
	}

	// The TUI owns the terminal; keep library logs out of it.
	quiet := c.Logger.With()
	quiet.SetLevel(LogError)
	opts.Logger = quiet

	var prog *tea.Program
	sess, err := pipeline.NewSession(ctx, trees, opts,
		animate.WithPlayer(animate.NewPlayer(duration, animate.Eases[opts.Ease])),
		animate.WithFrameHandler(func(res animate.Result) {
			if prog != nil {
				prog.Send(frameMsg(res))
			}
		}),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	m := newPlayModel(ctx, sess, opts, output)
	if err := m.renderAt(m.progress()); err != nil {
		return err
	}
	prog = tea.NewProgram(m, tea.WithContext(ctx))
	_, err = prog.Run()
	sess.Controller.StopAnimation()
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	if m.err != nil {
		return m.err
	}
	printSuccess("Last frame written")
	printFile(output)
	return nil
}

// =============================================================================
// playModel - Interactive timeline
// =============================================================================

type (
	frameMsg animate.Result
	tickMsg  time.Time
)

// playModel is a bubbletea model driving the session's store. Scrubbing
// writes the store and renders synchronously while paused; during playback
// the controller's loop picks up the new position on its next tick.
type playModel struct {
	ctx    context.Context
	sess   *pipeline.Session
	name   string
	ease   string
	output string

	n      int
	leaves int
	report morph.Report
	frame  *animate.Result
	dirty  bool
	err    error
}

func newPlayModel(ctx context.Context, sess *pipeline.Session, opts pipeline.Options, output string) *playModel {
	trees := sess.Store.Trees()
	return &playModel{
		ctx:    ctx,
		sess:   sess,
		name:   opts.Source,
		ease:   opts.Ease,
		output: output,
		n:      len(trees),
		leaves: len(trees[0].Leaves()),
	}
}

func (m *playModel) progress() float64 { return m.sess.Store.Playback().Progress }

func (m *playModel) direction() diff.Direction { return m.sess.Store.Playback().Direction }

// stepSize is the progress one arrow press moves.
func (m *playModel) stepSize() float64 {
	return 1 / float64(scrubSteps*max(m.n-1, 1))
}

// treeProgress returns the timeline position of tree i.
func treeProgress(i, n int) float64 {
	if n < 2 {
		return 0
	}
	return float64(i) / float64(n-1)
}

// seek moves the playhead. While paused the frame is rendered at once.
func (m *playModel) seek(p float64) {
	p = math.Max(0, math.Min(1, p))
	m.sess.Store.SetPosition(int(math.Round(p*float64(max(m.n-1, 0)))), p)
	if m.sess.Controller.Animating() {
		return
	}
	if err := m.renderAt(p); err != nil {
		m.err = err
	}
}

func (m *playModel) renderAt(p float64) error {
	from, to, t := animate.Position(p, m.n, animate.Eases[m.ease])
	res, err := m.sess.Controller.RenderInterpolatedFrame(m.ctx, from, to, t, animate.FrameOptions{Direction: m.direction()})
	if err != nil {
		return err
	}
	m.frame, m.report, m.dirty = &res, res.Report, true
	return nil
}

func (m *playModel) toggle() {
	ctrl := m.sess.Controller
	if ctrl.Animating() {
		ctrl.StopAnimation()
		return
	}
	// Restart from the far end when playback already finished.
	switch p := m.progress(); {
	case m.direction() == diff.Forward && p >= 1:
		m.sess.Store.SetPosition(0, 0)
	case m.direction() == diff.Backward && p <= 0:
		m.sess.Store.SetPosition(m.n-1, 1)
	}
	if err := ctrl.StartAnimation(m.ctx); err != nil {
		m.err = err
	}
}

func (m *playModel) reverse() {
	pb := m.sess.Store.Playback()
	dir := diff.Backward
	if pb.Direction == diff.Backward {
		dir = diff.Forward
	}
	m.sess.Store.SetPlaying(pb.Playing, dir)
}

// flush writes the latest frame to the live file.
func (m *playModel) flush() {
	if !m.dirty || m.frame == nil {
		return
	}
	m.dirty = false
	if err := writeFile(m.output, sink.RenderSVG(m.frame.Frame)); err != nil {
		m.err = err
	}
}

func tick() tea.Cmd {
	return tea.Tick(playRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *playModel) Init() tea.Cmd {
	return tick()
}

func (m *playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.flush()
			return m, tea.Quit
		case " ":
			m.toggle()
		case "r":
			m.reverse()
		case "left", "h":
			m.seek(m.progress() - m.stepSize())
		case "right", "l":
			m.seek(m.progress() + m.stepSize())
		case "[":
			i := int(math.Ceil(m.progress()*float64(m.n-1)-1e-9)) - 1
			m.seek(treeProgress(max(i, 0), m.n))
		case "]":
			i := int(math.Floor(m.progress()*float64(m.n-1)+1e-9)) + 1
			m.seek(treeProgress(min(i, m.n-1), m.n))
		case "home", "g":
			m.seek(0)
		case "end", "G":
			m.seek(1)
		}
		if m.err != nil {
			return m, tea.Quit
		}
	case frameMsg:
		res := animate.Result(msg)
		m.frame, m.report, m.dirty = &res, res.Report, true
	case tickMsg:
		m.flush()
		if m.err != nil {
			return m, tea.Quit
		}
		return m, tick()
	}
	return m, nil
}

var (
	playBarDone   = lipgloss.NewStyle().Foreground(colorAccent)
	playBarRest   = lipgloss.NewStyle().Foreground(colorFaint)
	playKeyStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	playTreeStyle = lipgloss.NewStyle().Foreground(colorText).Bold(true)
)

func (m *playModel) View() string {
	var b strings.Builder
	pb := m.sess.Store.Playback()

	b.WriteString(StyleTitle.Render(appName) + "  " + StyleValue.Render(m.name) + "  ")
	b.WriteString(StyleDim.Render(plural(m.n, "tree") + " · " + plural(m.leaves, "leaf")))
	b.WriteString("\n\n")

	state := "❚❚ paused"
	if pb.Playing {
		state = "▶ playing"
	}
	b.WriteString(fmt.Sprintf(" %s  %s  %s\n",
		playTreeStyle.Render(fmt.Sprintf("tree %d → %d", m.report.From, m.report.To)),
		StyleNumber.Render(fmt.Sprintf("t %.2f", m.report.T)),
		StyleDim.Render(state+" "+pb.Direction.String())))

	b.WriteString(" " + progressBar(pb.Progress, barWidth) + " " + StyleDim.Render(fmt.Sprintf("%3.0f%%", pb.Progress*100)) + "\n")
	b.WriteString(" " + treeMarkers(m.n, barWidth) + "\n\n")

	b.WriteString(" " + changeLine(m.report.Entered, m.report.Exited, m.report.Classes))
	b.WriteString("\n\n")
	b.WriteString(playKeyStyle.Render("space play/pause  r reverse  ←/→ scrub  [/] tree  q quit"))
	b.WriteString("\n")
	return b.String()
}

// progressBar draws a bar of width cells filled to p.
func progressBar(p float64, width int) string {
	done := int(math.Round(math.Max(0, math.Min(1, p)) * float64(width)))
	return playBarDone.Render(strings.Repeat("█", done)) + playBarRest.Render(strings.Repeat("░", width-done))
}

// treeMarkers places one marker per tree under the bar.
func treeMarkers(n, width int) string {
	cells := []rune(strings.Repeat(" ", width+1))
	for i := range n {
		cells[int(math.Round(treeProgress(i, n)*float64(width)))] = '●'
	}
	return StyleDim.Render(string(cells))
}
