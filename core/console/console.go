// Package console is a line-oriented control surface for the mixer: each
// command line becomes one mixer intent.
package console

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"RPGMixer/core/mixer"
	"RPGMixer/core/playback"
	"RPGMixer/model"

	"github.com/chzyer/readline"
	"golang.org/x/text/cases"
)

// ErrQuit ends the session.
var ErrQuit = errors.New("quit")

// ErrAmbiguous is returned when a name matches several tracks or presets.
var ErrAmbiguous = errors.New("ambiguous name")

type command struct {
	usage string
	run   func(c *Console, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"ctx":     {"ctx <context>", cmdContext},
		"vol":     {"vol <0-100>", cmdMaster},
		"play":    {"play <music>", cmdPlay},
		"resume":  {"resume", simple(mixer.ActionResumeMusic)},
		"pause":   {"pause", simple(mixer.ActionPauseMusic)},
		"stop":    {"stop", simple(mixer.ActionStopMusic)},
		"mode":    {"mode <loop|sequential|shuffle>", cmdMode},
		"seek":    {"seek <seconds>", cmdSeek},
		"amb":     {"amb <ambience>", cmdAmbience},
		"amb-off": {"amb-off <layer>", cmdAmbienceStop},
		"amb-vol": {"amb-vol <layer> <0-100>", cmdAmbienceVolume},
		"mute":    {"mute <layer>", cmdMute},
		"sfx":     {"sfx <effect>", cmdSFX},
		"preset":  {"preset load|save|update|delete [name]", cmdPreset},
		"panic":   {"panic", simple(mixer.ActionPanic)},
		"state":   {"state", cmdState},
		"list":    {"list", cmdList},
		"help":    {"help", cmdHelp},
		"quit":    {"quit", func(*Console, []string) error { return ErrQuit }},
	}
}

// Console runs commands against a mixer and prints to out.
type Console struct {
	mixer *mixer.Mixer
	out   io.Writer
}

// New creates a console.
func New(m *mixer.Mixer, out io.Writer) *Console {
	return &Console{mixer: m, out: out}
}

// Exec parses and runs one command line. Empty lines are ignored.
func (c *Console) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, ok := commands[strings.ToLower(fields[0])]
	if !ok {
		return fmt.Errorf("%w: %q (try help)", mixer.ErrUnknownAction, fields[0])
	}
	return cmd.run(c, fields[1:])
}

func (c *Console) apply(in mixer.Intent) (mixer.Result, error) {
	return c.mixer.Apply(in)
}

func simple(action string) func(*Console, []string) error {
	return func(c *Console, _ []string) error {
		_, err := c.apply(mixer.Intent{Action: action})
		return err
	}
}

func intArg(args []string, i int, name string) (int, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("%w: %s", mixer.ErrMissingField, name)
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func cmdContext(c *Console, args []string) error {
	_, err := c.apply(mixer.Intent{Action: mixer.ActionSetContext, Context: strings.Join(args, " ")})
	return err
}

func cmdMaster(c *Console, args []string) error {
	v, err := intArg(args, 0, "volume")
	if err != nil {
		return err
	}
	_, err = c.apply(mixer.Intent{Action: mixer.ActionSetMasterVolume, Volume: &v})
	return err
}

func cmdPlay(c *Console, args []string) error {
	t, err := c.findTrack(strings.Join(args, " "), model.TrackMusic)
	if err != nil {
		return err
	}
	if _, err := c.apply(mixer.Intent{Action: mixer.ActionPlayMusic, TrackID: t.ID}); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "▶ %s\n", t.Name)
	return nil
}

func cmdMode(c *Console, args []string) error {
	_, err := c.apply(mixer.Intent{Action: mixer.ActionSetPlaybackMode, Mode: strings.Join(args, "")})
	return err
}

func cmdSeek(c *Console, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: seconds", mixer.ErrMissingField)
	}
	sec, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("seconds: %w", err)
	}
	_, err = c.apply(mixer.Intent{Action: mixer.ActionRequestSeek, Seconds: sec})
	return err
}

func cmdAmbience(c *Console, args []string) error {
	t, err := c.findTrack(strings.Join(args, " "), model.TrackAmbience)
	if err != nil {
		return err
	}
	res, err := c.apply(mixer.Intent{Action: mixer.ActionPlayAmbience, TrackID: t.ID})
	if err != nil {
		return err
	}
	st, err := c.mixer.State()
	if err != nil {
		return err
	}
	for i, l := range st.Ambience {
		if l.InstanceID == res.InstanceID {
			fmt.Fprintf(c.out, "+ [%d] %s\n", i+1, t.Name)
		}
	}
	return nil
}

// layer resolves a 1-based layer number or an instance id.
func (c *Console) layer(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%w: layer", mixer.ErrMissingField)
	}
	st, err := c.mixer.State()
	if err != nil {
		return "", err
	}
	if n, err := strconv.Atoi(args[0]); err == nil {
		if n < 1 || n > len(st.Ambience) {
			return "", fmt.Errorf("%w: layer %d", playback.ErrUnknownLayer, n)
		}
		return st.Ambience[n-1].InstanceID, nil
	}
	return args[0], nil
}

func cmdAmbienceStop(c *Console, args []string) error {
	id, err := c.layer(args)
	if err != nil {
		return err
	}
	_, err = c.apply(mixer.Intent{Action: mixer.ActionStopAmbience, InstanceID: id})
	return err
}

func cmdAmbienceVolume(c *Console, args []string) error {
	id, err := c.layer(args)
	if err != nil {
		return err
	}
	v, err := intArg(args, 1, "volume")
	if err != nil {
		return err
	}
	_, err = c.apply(mixer.Intent{Action: mixer.ActionSetAmbienceVolume, InstanceID: id, Volume: &v})
	return err
}

func cmdMute(c *Console, args []string) error {
	id, err := c.layer(args)
	if err != nil {
		return err
	}
	_, err = c.apply(mixer.Intent{Action: mixer.ActionToggleAmbienceMute, InstanceID: id})
	return err
}

func cmdSFX(c *Console, args []string) error {
	t, err := c.findTrack(strings.Join(args, " "), model.TrackSFX)
	if err != nil {
		return err
	}
	_, err = c.apply(mixer.Intent{Action: mixer.ActionToggleSFX, TrackID: t.ID})
	return err
}

func cmdPreset(c *Console, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: preset subcommand", mixer.ErrMissingField)
	}
	name := strings.Join(args[1:], " ")
	switch strings.ToLower(args[0]) {
	case "load":
		p, err := c.findPreset(name)
		if err != nil {
			return err
		}
		_, err = c.apply(mixer.Intent{Action: mixer.ActionLoadPreset, PresetID: p.ID})
		return err
	case "save":
		res, err := c.apply(mixer.Intent{Action: mixer.ActionSaveNewPreset, Name: name})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "saved %q (%d layers)\n", res.Preset.Name, len(res.Preset.Tracks))
		return nil
	case "update":
		_, err := c.apply(mixer.Intent{Action: mixer.ActionUpdateCurrentPreset})
		return err
	case "delete":
		p, err := c.findPreset(name)
		if err != nil {
			return err
		}
		_, err = c.apply(mixer.Intent{Action: mixer.ActionDeletePreset, PresetID: p.ID})
		return err
	default:
		return fmt.Errorf("%w: preset %s", mixer.ErrUnknownAction, args[0])
	}
}

func cmdHelp(c *Console, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(c.out, "  %s\n", commands[name].usage)
	}
	return nil
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// findTrack matches an id, then an exact name, then a unique name prefix.
// Tracks visible in the current context win over hidden ones.
func (c *Console) findTrack(query string, typ model.TrackType) (model.Track, error) {
	if strings.TrimSpace(query) == "" {
		return model.Track{}, fmt.Errorf("%w: track", mixer.ErrMissingField)
	}
	var (
		tracks []model.Track
		ctx    string
	)
	err := c.mixer.Do(func(s *playback.Store) error {
		tracks = append(tracks, s.Catalog()...)
		ctx = s.State().Context
		return nil
	})
	if err != nil {
		return model.Track{}, err
	}

	q := fold(query)
	var exact, prefix []model.Track
	for _, t := range tracks {
		if t.Type != typ {
			continue
		}
		if t.ID == query {
			return t, nil
		}
		name := fold(t.Name)
		switch {
		case name == q:
			exact = append(exact, t)
		case strings.HasPrefix(name, q):
			prefix = append(prefix, t)
		}
	}
	for _, set := range [][]model.Track{exact, prefix} {
		if t, ok, err := pick(set, ctx, query); ok || err != nil {
			return t, err
		}
	}
	return model.Track{}, fmt.Errorf("%w: %q", mixer.ErrUnknownTrack, query)
}

func pick(set []model.Track, ctx, query string) (model.Track, bool, error) {
	if len(set) == 1 {
		return set[0], true, nil
	}
	var visible []model.Track
	for _, t := range set {
		if t.VisibleIn(ctx) {
			visible = append(visible, t)
		}
	}
	switch {
	case len(visible) == 1:
		return visible[0], true, nil
	case len(set) > 1:
		return model.Track{}, false, fmt.Errorf("%w: %q matches %d tracks", ErrAmbiguous, query, len(set))
	}
	return model.Track{}, false, nil
}

func (c *Console) findPreset(query string) (model.AmbiencePreset, error) {
	st, err := c.mixer.State()
	if err != nil {
		return model.AmbiencePreset{}, err
	}
	if query == "" {
		return model.AmbiencePreset{}, fmt.Errorf("%w: preset name", mixer.ErrMissingField)
	}
	q := fold(query)
	var found []model.AmbiencePreset
	for _, p := range st.Presets {
		if p.ID == query {
			return p, nil
		}
		if fold(p.Name) == q {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return model.AmbiencePreset{}, fmt.Errorf("%w: %q", playback.ErrUnknownPreset, query)
	case 1:
		return found[0], nil
	default:
		return model.AmbiencePreset{}, fmt.Errorf("%w: %q matches %d presets", ErrAmbiguous, query, len(found))
	}
}

// Completer offers command names and, after play/amb/sfx, track names.
func (c *Console) Completer() readline.AutoCompleter {
	names := func(typ model.TrackType) func(string) []string {
		return func(string) []string {
			tracks, err := c.mixer.Catalog()
			if err != nil {
				return nil
			}
			var out []string
			for _, t := range tracks {
				if t.Type == typ {
					out = append(out, t.Name)
				}
			}
			return out
		}
	}
	presets := func(string) []string {
		st, err := c.mixer.State()
		if err != nil {
			return nil
		}
		out := make([]string, 0, len(st.Presets))
		for _, p := range st.Presets {
			out = append(out, p.Name)
		}
		return out
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem("play", readline.PcItemDynamic(names(model.TrackMusic))),
		readline.PcItem("amb", readline.PcItemDynamic(names(model.TrackAmbience))),
		readline.PcItem("sfx", readline.PcItemDynamic(names(model.TrackSFX))),
		readline.PcItem("mode",
			readline.PcItem(string(playback.ModeLoop)),
			readline.PcItem(string(playback.ModeSequential)),
			readline.PcItem(string(playback.ModeShuffle))),
		readline.PcItem("preset",
			readline.PcItem("load", readline.PcItemDynamic(presets)),
			readline.PcItem("delete", readline.PcItemDynamic(presets)),
			readline.PcItem("save"),
			readline.PcItem("update")),
	}
	for name := range commands {
		switch name {
		case "play", "amb", "sfx", "mode", "preset":
		default:
			items = append(items, readline.PcItem(name))
		}
	}
	return readline.NewPrefixCompleter(items...)
}

// Run reads lines until quit, EOF or an interrupt on an empty line.
func (c *Console) Run(rl *readline.Instance) error {
	fmt.Fprintln(c.out, "type help for commands")
	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return err
		}

		if err := c.Exec(line); errors.Is(err, ErrQuit) {
			return nil
		} else if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}
