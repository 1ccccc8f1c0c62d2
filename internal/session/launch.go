package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/conn-castle/alpine-term/internal/config"
	"github.com/conn-castle/alpine-term/internal/envfile"
)

// Kind selects what the entry point starts. The numeric value is passed to it as argv[2].
type Kind int

// Session kinds.
const (
	KindQEMU        Kind = 0
	KindQEMUSandbox Kind = 1
	KindSerial      Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindQEMU:
		return "qemu"
	case KindQEMUSandbox:
		return "qemu-sandbox"
	case KindSerial:
		return "serial"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// LaunchSpec is everything needed to build the process config for one session.
type LaunchSpec struct {
	Kind Kind
	// Number is the serial console index; ignored for other kinds.
	Number int
	Name   string
	Paths  config.Paths
	Config config.Config
	// Extra is applied last and may override any variable.
	Extra map[string]string
	Rows  uint16
	Cols  uint16
}

var getenv = os.Getenv

// BuildConfig returns the process config for spec: the interpreter running the
// entry point with the kind code, in the data directory, with the environment
// the entry point reads its settings from.
func BuildConfig(spec LaunchSpec) Config {
	cfg := spec.Config
	root := spec.Paths.Root
	home := spec.Paths.DataDir

	path := cfg.Environment.BinDir
	if path == "" {
		path = getenv("PATH")
	}

	env := []string{
		"CONFIG_QEMU_RAM=" + cfg.QEMU.RAM,
		"CONFIG_QEMU_HDD1_PATH=" + cfg.QEMU.HDD1Path,
		"CONFIG_QEMU_HDD2_PATH=" + cfg.QEMU.HDD2Path,
		"CONFIG_QEMU_CDROM_PATH=" + cfg.QEMU.CDROMPath,
		"CONFIG_QEMU_DNS=" + cfg.QEMU.UpstreamDNS,
		"CONFIG_QEMU_EXPOSED_PORTS=" + strings.Join(cfg.QEMU.PortRules(), ","),
		"PREFIX=" + root,
		"LANG=" + cfg.Session.Lang,
		"TERM=" + cfg.Session.Term,
		"HOME=" + home,
		"PWD=" + home,
		"PATH=" + path,
		"TERMINFO=" + filepath.Join(root, "share", "terminfo"),
		"TMPDIR=" + spec.Paths.TmpDir(),
	}
	if spec.Kind == KindSerial {
		env = append(env, "SERIAL_CONSOLE_NUMBER="+strconv.Itoa(spec.Number))
	}
	env = envfile.Overlay(env, spec.Extra)

	interpreter := cfg.Environment.Interpreter
	return Config{
		Executable: interpreter,
		Args:       []string{interpreter, spec.Paths.EntryPoint(), strconv.Itoa(int(spec.Kind))},
		Env:        env,
		Dir:        home,
		Name:       spec.Name,
		Rows:       spec.Rows,
		Cols:       spec.Cols,
	}
}

// GetEnv returns the value for key from an env slice.
func GetEnv(env []string, key string) (string, bool) {
	for _, entry := range env {
		k, v, ok := strings.Cut(entry, "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}
