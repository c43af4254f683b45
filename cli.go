package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"speccy/emu/log"
)

type mode byte

const (
	runMode     mode = iota // Run the emulator
	versionMode             // Show speccy version
)

type (
	CLI struct {
		Run     Run     `cmd:"" help:"Run the emulator. (default command)" default:"true"`
		Version Version `cmd:"" help:"Show speccy version."`

		Log logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`

		mode mode
	}

	Run struct {
		TapePath string `arg:"" name:"/path/to/tape.tap" help:"${tapepath_help}" optional:"" type:"path"`

		Model       string `name:"model" help:"Hardware model: 16, 48 or 128." placeholder:"48"`
		Joystick    string `name:"joystick" help:"${joystick_help}" placeholder:"kempston"`
		FirmwareDir string `name:"firmware" help:"Directory holding the ROM images." type:"existingdir"`
		Scale       int    `name:"scale" help:"Window scale factor."`
		NoAudio     bool   `name:"no-audio" help:"Disable audio output."`
		Turbo       bool   `name:"turbo" help:"Start in accelerated mode."`
		CPUProfile  string `name:"cpuprofile" help:"Write CPU profile to file." type:"path"`
		Port        int    `name:"port" hidden:"true"`
	}

	Version struct{}
)

var vars = kong.Vars{
	"tapepath_help": "Insert this TAP file into the tape deck at startup.",
	"joystick_help": "Joystick interface: none, kempston, sinclair1, sinclair2 or cursor.",
	"log_help":      "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("speccy"),
		kong.Description("ZX Spectrum emulator."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if strings.HasPrefix(ctx.Command(), "run") {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}
