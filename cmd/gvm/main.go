package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"

	"sandm/internal/debugger"
	"sandm/internal/iodevices"
	"sandm/vm"
)

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("could not read %s: %w", path, err)
	}
	return string(data), nil
}

func asm(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: gvm asm [-o output.bin] <source.asm>", 1)
	}
	src, err := readSource(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}

	bc, err := vm.NewAssembler().Compile(src)
	if err != nil {
		return cli.Exit(err, 1)
	}

	out := c.String("o")
	if out == "" {
		out = strings.TrimSuffix(c.Args().First(), ".asm") + ".bin"
	}
	if err := os.WriteFile(out, bc, 0644); err != nil {
		return cli.Exit(err, 1)
	}
	log.Info("assembled", "source", c.Args().First(), "output", out, "bytes", len(bc))
	return nil
}

func disasmCmd(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: gvm disasm <image.bin>", 1)
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	lines, err := vm.Disassemble(data)
	if err != nil {
		return cli.Exit(err, 1)
	}
	for i, line := range lines {
		fmt.Printf("%4d: %s\n", i, line)
	}
	return nil
}

// loadImage either assembles the source (for .asm) or loads raw bytecode
// (anything else) and returns the bytecode plus, for .asm sources, a
// debug map of line -> address for the debugger's breakpoints.
func loadImage(path string) ([]byte, map[int]vm.Address, error) {
	if strings.HasSuffix(path, ".asm") {
		src, err := readSource(path)
		if err != nil {
			return nil, nil, err
		}
		bc, dbg, err := vm.NewAssembler().CompileWithDebug(src)
		if err != nil {
			return nil, nil, err
		}
		return bc, dbg, nil
	}
	bc, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return bc, nil, nil
}

func run(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: gvm run <program>", 1)
	}
	bc, _, err := loadImage(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}

	mem := vm.NewMemoryManager()
	if err := mem.Load(bc); err != nil {
		return cli.Exit(err, 1)
	}

	console := iodevices.NewConsole(os.Stdin, os.Stdout, log.Default())
	defer console.Close()

	proc := vm.NewProcessor(mem, nil, console)
	if err := proc.Run(); err != nil {
		return cli.Exit(err, 1)
	}
	log.Info("halted", "acc", proc.GetAccumulator().Word(), "ip", proc.GetInstructionPointer())
	return nil
}

func debug(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: gvm debug [--break line,line,...] <program.asm>", 1)
	}
	bc, dbg, err := loadImage(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}

	mem := vm.NewMemoryManager()
	if err := mem.Load(bc); err != nil {
		return cli.Exit(err, 1)
	}

	console := iodevices.NewConsole(os.Stdin, os.Stdout, log.Default())
	defer console.Close()

	proc := vm.NewProcessor(mem, nil, console)

	var breakAt []int
	if raw := c.String("break"); raw != "" {
		for _, tok := range strings.Split(raw, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(tok))
			if err != nil {
				return cli.Exit(fmt.Sprintf("invalid break line %q", tok), 1)
			}
			breakAt = append(breakAt, n)
		}
	}

	return debugger.Run(proc, mem, dbg, breakAt)
}

func test(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("usage: gvm test <source.asm>", 1)
	}
	src, err := readSource(c.Args().First())
	if err != nil {
		return cli.Exit(err, 1)
	}
	errs := vm.NewAssembler().TestSource(src)
	if len(errs) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	for _, e := range errs {
		fmt.Println(e)
	}
	return cli.Exit(fmt.Sprintf("%d diagnostic(s)", len(errs)), 1)
}

func main() {
	log.SetLevel(log.InfoLevel)

	app := &cli.App{
		Name:  "gvm",
		Usage: "assembler, memory manager, and processor for a small register machine",
		Commands: []*cli.Command{
			{
				Name:      "asm",
				Usage:     "assemble a source file into a bytecode image",
				ArgsUsage: "<source.asm>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "o", Usage: "output path (default: <source>.bin)"},
				},
				Action: asm,
			},
			{
				Name:      "disasm",
				Usage:     "disassemble a bytecode image back to text",
				ArgsUsage: "<image.bin>",
				Action:    disasmCmd,
			},
			{
				Name:      "run",
				Usage:     "assemble (if needed) and run a program to completion",
				ArgsUsage: "<program.asm|program.bin>",
				Action:    run,
			},
			{
				Name:      "test",
				Usage:     "report every diagnostic in a source file without stopping at the first",
				ArgsUsage: "<source.asm>",
				Action:    test,
			},
			{
				Name:      "debug",
				Usage:     "step a program interactively in a terminal UI",
				ArgsUsage: "<program.asm>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "break", Usage: "comma-separated source lines to break on"},
				},
				Action: debug,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
