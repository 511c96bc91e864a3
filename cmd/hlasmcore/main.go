package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"hlasm-core/internal/config"
	"hlasm-core/internal/driver"
	"hlasm-core/internal/lline"
	"hlasm-core/internal/opencode"
	"hlasm-core/internal/preproc"
	"hlasm-core/internal/report"
	"hlasm-core/internal/vfile"
)

func parseFile(file string) error {
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return err
	}
	ex := lline.NewExtractor(data, lline.Default())
	for {
		ll, ok := ex.Next()
		if !ok {
			break
		}
		segs := make([]string, len(ll.Segments))
		for i, s := range ll.Segments {
			segs[i] = string(data[s.Code.Begin:s.Code.End])
		}
		report.WriteLogicalLine(os.Stdout, string(ll.Text(data)), segs)
	}
	return nil
}

// stagesFor maps a processor group's configured preprocessor names to the
// §4.H stages that implement them.
func stagesFor(names []config.PreprocessorName) []preproc.Stage {
	var stages []preproc.Stage
	for _, n := range names {
		switch n {
		case config.PreprocessorDB2:
			stages = append(stages, preproc.DB2Stage{})
		case config.PreprocessorCICS:
			stages = append(stages, preproc.CICSStage{})
		}
	}
	return stages
}

// loadGroup reads configPath (if given) via internal/config and returns the
// named processor group, so its preprocessor pipeline and library roots can
// drive newDriver. Returns a zero-value group and no error when configPath
// is empty: check/syms still run, just with no preprocessor stages and no
// COPY libraries configured.
func loadGroup(configPath, groupName string) (config.ProcessorGroup, error) {
	if configPath == "" {
		return config.ProcessorGroup{}, nil
	}
	loader := config.NewLoader(afero.NewOsFs(), nil, filepath.Dir(configPath))
	doc, err := loader.Load(configPath)
	if err != nil {
		return config.ProcessorGroup{}, err
	}
	for _, g := range doc.Groups {
		if g.Name == groupName {
			return g, nil
		}
	}
	return config.ProcessorGroup{}, fmt.Errorf("processor group %q not found in %s", groupName, configPath)
}

// newDriver builds a Driver from file's source, routed through the full
// B (lline) -> H (preproc) -> I (opencode) pipeline (§2's data flow) rather
// than handed raw physical lines, and wires the named processor group's
// library roots for COPY member resolution (§4.J).
func newDriver(file, configPath, groupName string) (*driver.Driver, error) {
	data, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, err
	}
	group, err := loadGroup(configPath, groupName)
	if err != nil {
		return nil, err
	}

	d := driver.NewFromSource(data, stagesFor(group.Preprocessors))
	if len(group.Libs) > 0 {
		d.EnableCopyResolution(afero.NewOsFs(), group.Libs)
	}
	return d, nil
}

func checkFile(file, configPath, groupName string) error {
	d, err := newDriver(file, configPath, groupName)
	if err != nil {
		return err
	}
	if _, err := d.Run(driver.NewCancelToken()); err != nil {
		return err
	}
	return report.WriteDiagnostics(os.Stdout, d.Diags)
}

func symsFile(file, configPath, groupName string) error {
	d, err := newDriver(file, configPath, groupName)
	if err != nil {
		return err
	}
	if _, err := d.Run(driver.NewCancelToken()); err != nil {
		return err
	}
	d.Ctx.FinishModuleLayout()
	return report.WriteSymbolTable(os.Stdout, d.Pool, d.Ctx, d.Ctx.Spaces.Address)
}

// expandMacro exercises the opencode provider's AINSERT/COPY multiplexing
// directly: body is treated as a COPY member standing in for the macro's
// model statements, and operands is AINSERT'd ahead of it the way a macro
// processor would generate a prologue statement before replaying its body.
// (internal/driver.MacroDef/expandMacro is the production macro-call path
// driven from real MACRO/MEND source; this subcommand is a standalone demo
// of the lower-level provider mechanics that path is built on.)
func expandMacro(name string, body []string, operands string) error {
	reg := vfile.New()
	provider := opencode.NewProvider(reg, preproc.Document{})
	provider.EnterCopy(name, body, 0)
	if operands != "" {
		provider.Ainsert(fmt.Sprintf("* generated from operands: %s", operands), false)
	}
	for {
		line, ok := provider.Next()
		if !ok {
			break
		}
		fmt.Printf("[%s] %s\n", sourceLabel(line.Source), line.Text)
	}
	return nil
}

func sourceLabel(s opencode.Source) string {
	switch s {
	case opencode.SourceAinsert:
		return "AINSERT"
	case opencode.SourceCopy:
		return "COPY"
	default:
		return "DOC"
	}
}

var configFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "config",
		Usage: "path to a proc_grps.json processor-group document",
	},
	cli.StringFlag{
		Name:  "group",
		Usage: "processor group name to select preprocessors and COPY libraries from",
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "hlasmcore"
	app.Usage = "Assembly semantic core for HLASM source analysis"
	app.Action = func(c *cli.Context) error {
		cli.ShowAppHelp(c)
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:      "parse",
			Usage:     "Extract and print the logical lines of a source file",
			ArgsUsage: "file",
			Action: func(c *cli.Context) error {
				args := c.Args()
				if len(args) < 1 {
					return cli.NewExitError("Insufficient arguments", 1)
				}
				if err := parseFile(args[0]); err != nil {
					return cli.NewExitError(fmt.Sprintf("could not parse %s: %s", args[0], err), 1)
				}
				return nil
			},
		},
		{
			Name:      "check",
			Usage:     "Run the statement pipeline over a source file and print diagnostics",
			ArgsUsage: "file",
			Flags:     configFlags,
			Action: func(c *cli.Context) error {
				args := c.Args()
				if len(args) < 1 {
					return cli.NewExitError("Insufficient arguments", 1)
				}
				if err := checkFile(args[0], c.String("config"), c.String("group")); err != nil {
					return cli.NewExitError(fmt.Sprintf("could not check %s: %s", args[0], err), 1)
				}
				return nil
			},
		},
		{
			Name:      "syms",
			Usage:     "Run the statement pipeline and dump the ordinary symbol table",
			ArgsUsage: "file",
			Flags:     configFlags,
			Action: func(c *cli.Context) error {
				args := c.Args()
				if len(args) < 1 {
					return cli.NewExitError("Insufficient arguments", 1)
				}
				if err := symsFile(args[0], c.String("config"), c.String("group")); err != nil {
					return cli.NewExitError(fmt.Sprintf("could not dump symbols for %s: %s", args[0], err), 1)
				}
				return nil
			},
		},
		{
			Name:      "macro",
			Usage:     "Expand a named macro's model statements against sample operands",
			ArgsUsage: "name file [operands]",
			Action: func(c *cli.Context) error {
				args := c.Args()
				if len(args) < 2 {
					return cli.NewExitError("Insufficient arguments", 1)
				}
				name, file := args[0], args[1]
				var operands string
				if len(args) >= 3 {
					operands = args[2]
				}
				data, err := ioutil.ReadFile(file)
				if err != nil {
					return cli.NewExitError(fmt.Sprintf("could not read %s: %s", file, err), 1)
				}
				body := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
				if err := expandMacro(name, body, operands); err != nil {
					return cli.NewExitError(fmt.Sprintf("could not expand %s: %s", name, err), 1)
				}
				return nil
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
