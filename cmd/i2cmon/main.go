package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/JimMerkle/go-soft-i2c/ds3231"
	"github.com/JimMerkle/go-soft-i2c/i2cscan"
	"github.com/JimMerkle/go-soft-i2c/sigtrace"
	"github.com/JimMerkle/go-soft-i2c/softi2c"
	"github.com/google/shlex"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var (
	sclName = flag.String("scl", "GPIO3", "pin driving the clock line")
	sdaName = flag.String("sda", "GPIO2", "pin driving the data line")
	color   = flag.String("color", "auto", "colorize output: auto, always or never")
)

// The battery backed clock the trace, time and temp commands talk to.
const clockAddr = ds3231.Addr

type monitor struct {
	bus   *softi2c.Bus
	trace *sigtrace.Trace
	out   io.Writer
	color bool
}

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("i2cmon: ")

	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	scl := gpioreg.ByName(*sclName)
	if scl == nil {
		log.Fatalf("no pin named %q", *sclName)
	}
	sda := gpioreg.ByName(*sdaName)
	if sda == nil {
		log.Fatalf("no pin named %q", *sdaName)
	}

	tm := softi2c.SystemTimer()
	tr := sigtrace.New(tm)
	bus, err := softi2c.New(tr.Pin("SCL", scl), tr.Pin("SDA", sda), &softi2c.Opts{Timer: tm})
	if err != nil {
		log.Fatal(err)
	}
	defer bus.Close()

	m := &monitor{bus: bus, trace: tr, out: colorable.NewColorableStdout()}
	switch *color {
	case "always":
		m.color = true
	case "never":
	case "auto":
		m.color = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	default:
		log.Fatalf("bad -color value %q", *color)
	}

	if flag.NArg() > 0 {
		if err := m.run(flag.Args()); err != nil {
			log.Fatal(err)
		}
		return
	}
	m.repl()
}

func (m *monitor) repl() {
	fmt.Fprintf(m.out, "%s ready, type help for commands\n", m.bus)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(m.out, "i2c> ")
		if !sc.Scan() {
			fmt.Fprintln(m.out)
			return
		}
		args, err := shlex.Split(sc.Text())
		if err != nil {
			log.Print(err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "quit" || args[0] == "exit" {
			return
		}
		if err := m.run(args); err != nil {
			log.Print(err)
		}
	}
}

func (m *monitor) run(args []string) error {
	switch args[0] {
	case "help":
		return m.help()
	case "scan":
		return m.scan()
	case "probe":
		return m.probe(args)
	case "read":
		return m.read(args)
	case "write":
		return m.write(args)
	case "trace":
		return m.traceCmd(args)
	case "time":
		return m.clockTime()
	case "settime":
		return m.clockSet()
	case "temp":
		return m.clockTemp()
	}
	return fmt.Errorf("unknown command %q, try help", args[0])
}

func (m *monitor) help() error {
	_, err := fmt.Fprint(m.out, `commands:
  scan                    map the bus like i2cdetect
  probe <addr>            address a device and report whether it answered
  read <addr> [reg [n]]   read n bytes, via a register pointer if given
  write <addr> <byte...>  write bytes
  trace [write|read] [png <file>]
                          capture the waveform of a one byte transfer
                          with the clock at 0x68 and draw it
  time                    read the DS3231 wall clock
  settime                 set the DS3231 from the host clock
  temp                    read the DS3231 die temperature
  help                    this text
  quit                    leave
`)
	return err
}

func (m *monitor) scan() error {
	found, err := i2cscan.Scan(m.bus)
	if err != nil {
		return err
	}
	if m.color {
		return i2cscan.FprintColor(m.out, found)
	}
	return i2cscan.Fprint(m.out, found)
}

func (m *monitor) probe(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: probe <addr>")
	}
	addr, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	present, err := m.bus.Probe(addr)
	if err != nil {
		return err
	}
	if present {
		fmt.Fprintf(m.out, "%#02x: present\n", addr)
	} else {
		fmt.Fprintf(m.out, "%#02x: no answer\n", addr)
	}
	return nil
}

func (m *monitor) read(args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return fmt.Errorf("usage: read <addr> [reg [n]]")
	}
	addr, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	var w []byte
	if len(args) >= 3 {
		w, err = parseBytes(args[2:3])
		if err != nil {
			return err
		}
	}
	count := 1
	if len(args) == 4 {
		count, err = strconv.Atoi(args[3])
		if err != nil || count < 1 {
			return fmt.Errorf("bad count %q", args[3])
		}
	}
	buf := make([]byte, count)
	if err := m.bus.Tx(addr, w, buf); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "% X\n", buf)
	return nil
}

func (m *monitor) write(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: write <addr> <byte...>")
	}
	addr, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	data, err := parseBytes(args[2:])
	if err != nil {
		return err
	}
	if err := m.bus.Tx(addr, data, nil); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "wrote % X to %#02x\n", data, addr)
	return nil
}

func (m *monitor) traceCmd(args []string) error {
	dir := "write"
	rest := args[1:]
	if len(rest) > 0 && (rest[0] == "write" || rest[0] == "read") {
		dir = rest[0]
		rest = rest[1:]
	}
	var pngPath string
	if len(rest) == 2 && rest[0] == "png" {
		pngPath = rest[1]
	} else if len(rest) != 0 {
		return fmt.Errorf("usage: trace [write|read] [png <file>]")
	}

	m.trace.Arm()
	var err error
	if dir == "write" {
		err = m.bus.Tx(clockAddr, []byte{0x00}, nil)
	} else {
		err = m.bus.Tx(clockAddr, nil, make([]byte, 1))
	}
	m.trace.Disarm()
	if err != nil {
		return err
	}

	if pngPath != "" {
		f, err := os.Create(pngPath)
		if err != nil {
			return err
		}
		if err := m.trace.RenderPNG(f, nil); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(m.out, "wrote %s\n", pngPath)
		return nil
	}
	var opts *sigtrace.RenderOpts
	if m.color {
		opts = &sigtrace.RenderOpts{Palette: ansi256.Default}
	}
	return m.trace.Render(m.out, opts)
}

func (m *monitor) clock() (*ds3231.Dev, error) {
	return ds3231.NewI2C(m.bus, clockAddr, nil)
}

func (m *monitor) clockTime() error {
	d, err := m.clock()
	if err != nil {
		return err
	}
	now, err := d.Now()
	if err != nil {
		return err
	}
	fmt.Fprintln(m.out, now.Format("Mon Jan  2 15:04:05 2006"))
	return nil
}

func (m *monitor) clockSet() error {
	d, err := m.clock()
	if err != nil {
		return err
	}
	now := time.Now()
	if err := d.SetTime(now); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "clock set to %s\n", now.Format("Mon Jan  2 15:04:05 2006"))
	return nil
}

func (m *monitor) clockTemp() error {
	d, err := m.clock()
	if err != nil {
		return err
	}
	var e physic.Env
	if err := d.Sense(&e); err != nil {
		return err
	}
	fmt.Fprintln(m.out, e.Temperature)
	return nil
}

func parseAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", s)
	}
	return uint16(v), nil
}

func parseBytes(args []string) ([]byte, error) {
	b := make([]byte, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseUint(a, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("bad byte %q", a)
		}
		b = append(b, byte(v))
	}
	return b, nil
}
