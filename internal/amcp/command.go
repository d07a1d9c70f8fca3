// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package amcp

import (
	"strconv"
	"strings"
)

// Command is one request line. Verb is kept apart for metrics and spans.
type Command struct {
	Verb string
	Args []string
}

// Params are the optional clip parameters shared by LOADBG, LOAD and PLAY.
// Seek and Length are frames; zero means unset.
type Params struct {
	Seek   int64
	Length int64
	Loop   bool
	Auto   bool
}

func (p Params) args() []string {
	var out []string
	if p.Loop {
		out = append(out, "LOOP")
	}
	if p.Seek > 0 {
		out = append(out, "SEEK", strconv.FormatInt(p.Seek, 10))
	}
	if p.Length > 0 {
		out = append(out, "LENGTH", strconv.FormatInt(p.Length, 10))
	}
	if p.Auto {
		out = append(out, "AUTO")
	}
	return out
}

// String renders the command as sent on the wire, without the line terminator.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Verb
	}
	return c.Verb + " " + strings.Join(c.Args, " ")
}

// Target formats the "channel-layer" address; a layer <= 0 addresses the channel.
func Target(channel, layer int) string {
	if layer <= 0 {
		return strconv.Itoa(channel)
	}
	return strconv.Itoa(channel) + "-" + strconv.Itoa(layer)
}

// Quote wraps a clip name in double quotes, escaping backslashes and quotes.
func Quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func clipCommand(verb string, channel, layer int, clip string, p Params) Command {
	args := []string{Target(channel, layer), Quote(clip)}
	return Command{Verb: verb, Args: append(args, p.args()...)}
}

// LoadBG prepares clip in the background slot.
func LoadBG(channel, layer int, clip string, p Params) Command {
	return clipCommand("LOADBG", channel, layer, clip, p)
}

// Load loads clip into the foreground, paused on its first frame.
func Load(channel, layer int, clip string, p Params) Command {
	return clipCommand("LOAD", channel, layer, clip, p)
}

// Play promotes the background slot to the foreground.
func Play(channel, layer int) Command {
	return Command{Verb: "PLAY", Args: []string{Target(channel, layer)}}
}

// PlayClip loads and plays clip immediately.
func PlayClip(channel, layer int, clip string, p Params) Command {
	return clipCommand("PLAY", channel, layer, clip, p)
}

// Pause freezes the foreground.
func Pause(channel, layer int) Command {
	return Command{Verb: "PAUSE", Args: []string{Target(channel, layer)}}
}

// Resume continues a paused foreground.
func Resume(channel, layer int) Command {
	return Command{Verb: "RESUME", Args: []string{Target(channel, layer)}}
}

// Clear empties both slots of the layer.
func Clear(channel, layer int) Command {
	return Command{Verb: "CLEAR", Args: []string{Target(channel, layer)}}
}

// Info queries channel or layer information.
func Info(channel, layer int) Command {
	return Command{Verb: "INFO", Args: []string{Target(channel, layer)}}
}

// Raw wraps a free-form command line. The first word becomes the verb.
func Raw(line string) Command {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
	if rest == "" {
		return Command{Verb: strings.ToUpper(fields[0])}
	}
	return Command{Verb: strings.ToUpper(fields[0]), Args: []string{rest}}
}
