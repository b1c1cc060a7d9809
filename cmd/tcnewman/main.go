package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/tinyrange/tcnewman/internal/hv/riscv/hart"
	"github.com/tinyrange/tcnewman/internal/machine"
	_ "github.com/tinyrange/tcnewman/internal/machine/tcnewman"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tcnewman: %v\n", err)
		os.Exit(1)
	}
}

type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, " ") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

func run() error {
	machineName := flag.String("machine", "tc-newman", "Board to build (-list to show all)")
	cpuType := flag.String("cpu", "", "CPU type (default: the board's default, -cpu help to list)")
	smp := flag.Int("smp", 1, "Number of harts")
	ramSize := machine.DefaultRAMSize
	flag.Var(&ramSize, "m", "RAM size (e.g. 128M, 2G)")
	var numa, serials stringList
	flag.Var(&numa, "numa", "NUMA node, e.g. cpus=0-3 (repeatable, one socket per node)")
	flag.Var(&serials, "serial", "Serial backend: stdio, null or file:<path> (repeatable, UART0 first)")
	configPath := flag.String("config", "", "YAML machine configuration")
	writeConfig := flag.String("write-config", "", "Write the effective configuration as YAML and exit")
	flashImage := flag.String("flash", "", "Raw firmware image loaded into flash")
	dumpROM := flag.Bool("dump-rom", false, "Print the boot ROM reset vector")
	info := flag.Bool("info", false, "Print the memory tree of the constructed board")
	list := flag.Bool("list", false, "List supported machines")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Build a RISC-V board and report its layout.\n\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s -info\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -smp 4 -numa cpus=0-1 -numa cpus=2-3 -dump-rom\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config board.yaml -flash fw.bin -serial stdio\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *list {
		return listMachines(os.Stdout)
	}
	if *cpuType == "help" {
		for _, name := range hart.CPUTypeNames() {
			fmt.Println(name)
		}
		return nil
	}

	var cfg machine.Config
	if *configPath != "" {
		loaded, err := machine.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	// Flags given on the command line override the config file.
	set := func(name string) bool {
		found := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}
	if cfg.Machine == "" || set("machine") {
		cfg.Machine = *machineName
	}
	if set("cpu") {
		cfg.CPUType = *cpuType
	}
	if cfg.Topology.CPUs == 0 || set("smp") {
		cfg.Topology.CPUs = *smp
	}
	if cfg.RAMSize == 0 || set("m") {
		cfg.RAMSize = ramSize
	}
	if len(numa) > 0 {
		cfg.Topology.Nodes = nil
		for _, desc := range numa {
			node, err := machine.ParseNUMA(desc)
			if err != nil {
				return err
			}
			cfg.Topology.Nodes = append(cfg.Topology.Nodes, node)
		}
	}
	if len(serials) > 0 {
		cfg.Serial = serials
	}
	if *flashImage != "" {
		cfg.Firmware = *flashImage
	}

	if *writeConfig != "" {
		return machine.WriteConfig(*writeConfig, cfg)
	}

	backends, closeBackends, err := openSerialBackends(cfg.Serial)
	if err != nil {
		return err
	}
	defer closeBackends()

	board, err := machine.New(cfg, machine.Options{Logger: logger, Serial: backends})
	if err != nil {
		return err
	}
	defer board.Close()

	if cfg.Firmware != "" {
		loader, ok := board.(machine.FirmwareLoader)
		if !ok {
			return fmt.Errorf("machine %s cannot load firmware", board.Name())
		}
		if err := loadFirmware(loader, cfg.Firmware, os.Stderr); err != nil {
			return err
		}
	}

	if *info {
		if err := board.AddressSpace().Dump(os.Stdout); err != nil {
			return err
		}
		if err := printCPUs(os.Stdout, cfg.Topology); err != nil {
			return err
		}
	}
	if *dumpROM {
		if err := dumpResetVector(os.Stdout, board); err != nil {
			return err
		}
	}
	return nil
}

func listMachines(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "Supported machines are:")
	for _, d := range machine.Descriptors() {
		fmt.Fprintf(tw, "%s\t%s (max cpus %d, default cpu %s)\n", d.Name, d.Description, d.MaxCPUs, d.DefaultCPUType)
	}
	return tw.Flush()
}

// printCPUs lists every possible CPU with its arch id and socket.
func printCPUs(w io.Writer, topo machine.Topology) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "cpu\tarch-id\tsocket\tnode")
	for _, slot := range topo.PossibleCPUs() {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", slot.Index, slot.ArchID, slot.SocketID, slot.NodeID)
	}
	return tw.Flush()
}

type progress interface {
	io.Writer
	Close() error
}

type silentProgress struct{}

func (silentProgress) Write(p []byte) (int, error) { return len(p), nil }
func (silentProgress) Close() error                { return nil }

// newProgress draws a byte progress bar on out when it is a terminal and
// stays quiet otherwise, so redirected logs carry no bar redraws.
func newProgress(out *os.File, size int64, title string) progress {
	if !term.IsTerminal(int(out.Fd())) {
		return silentProgress{}
	}
	return progressbar.NewOptions64(size,
		progressbar.OptionSetDescription(title),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowTotalBytes(true),
		progressbar.OptionSetWidth(10),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(out, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func loadFirmware(loader machine.FirmwareLoader, path string, out *os.File) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open firmware: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat firmware: %w", err)
	}

	bar := newProgress(out, st.Size(), "load "+path)
	defer bar.Close()

	if _, err := loader.LoadFirmware(io.TeeReader(f, bar)); err != nil {
		return err
	}
	return nil
}
