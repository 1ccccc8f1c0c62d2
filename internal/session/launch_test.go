package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/conn-castle/alpine-term/internal/config"
)

func TestBuildConfigSerial(t *testing.T) {
	orig := getenv
	t.Cleanup(func() { getenv = orig })
	getenv = func(string) string { return "/usr/bin:/bin" }

	paths := config.DefaultPaths("/data")
	cfg := config.Default()
	cfg.QEMU.ExposedPorts = " tcp:2222:22 ,udp:5353:53"
	cfg.Resolve(paths)

	got := BuildConfig(LaunchSpec{Kind: KindSerial, Number: 2, Name: "/dev/ttyS2", Paths: paths, Config: cfg, Rows: 30, Cols: 90})

	assert.Equal(t, "bash", got.Executable)
	assert.Equal(t, []string{"bash", "/data/environment/entrypoint.bash", "2"}, got.Args)
	assert.Equal(t, "/data", got.Dir)
	assert.Equal(t, "/dev/ttyS2", got.Name)
	assert.Equal(t, uint16(30), got.Rows)

	want := map[string]string{
		"CONFIG_QEMU_RAM":           "256",
		"CONFIG_QEMU_HDD1_PATH":     "/data/os_snapshot.qcow2",
		"CONFIG_QEMU_HDD2_PATH":     "",
		"CONFIG_QEMU_CDROM_PATH":    "",
		"CONFIG_QEMU_DNS":           "1.1.1.1",
		"CONFIG_QEMU_EXPOSED_PORTS": "tcp:2222:22,udp:5353:53",
		"PREFIX":                    "/data/environment",
		"LANG":                      "en_US.UTF-8",
		"TERM":                      "xterm-256color",
		"HOME":                      "/data",
		"PWD":                       "/data",
		"PATH":                      "/usr/bin:/bin",
		"TERMINFO":                  "/data/environment/share/terminfo",
		"TMPDIR":                    "/data/environment/tmp",
		"SERIAL_CONSOLE_NUMBER":     "2",
	}
	for key, value := range want {
		actual, ok := GetEnv(got.Env, key)
		assert.True(t, ok, key)
		assert.Equal(t, value, actual, key)
	}
	assert.Len(t, got.Env, len(want))
}

func TestBuildConfigMonitorHasNoSerialNumber(t *testing.T) {
	paths := config.DefaultPaths("/data")
	cfg := config.Default()
	cfg.Environment.BinDir = "/opt/aterm/bin"

	got := BuildConfig(LaunchSpec{Kind: KindQEMUSandbox, Paths: paths, Config: cfg})
	assert.Equal(t, "1", got.Args[2])
	_, ok := GetEnv(got.Env, "SERIAL_CONSOLE_NUMBER")
	assert.False(t, ok)
	path, _ := GetEnv(got.Env, "PATH")
	assert.Equal(t, "/opt/aterm/bin", path)
}

func TestBuildConfigExtraOverrides(t *testing.T) {
	paths := config.DefaultPaths("/data")
	got := BuildConfig(LaunchSpec{
		Kind:   KindQEMU,
		Paths:  paths,
		Config: config.Default(),
		Extra:  map[string]string{"CONFIG_QEMU_RAM": "2048", "QEMU_AUDIO_DRV": "none"},
	})
	ram, _ := GetEnv(got.Env, "CONFIG_QEMU_RAM")
	assert.Equal(t, "2048", ram)
	drv, ok := GetEnv(got.Env, "QEMU_AUDIO_DRV")
	assert.True(t, ok)
	assert.Equal(t, "none", drv)
	assert.Equal(t, "0", got.Args[2])
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "qemu", KindQEMU.String())
	assert.Equal(t, "qemu-sandbox", KindQEMUSandbox.String())
	assert.Equal(t, "serial", KindSerial.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestGetEnv(t *testing.T) {
	env := []string{"A=1", "B=x=y", "MALFORMED"}
	v, ok := GetEnv(env, "B")
	assert.True(t, ok)
	assert.Equal(t, "x=y", v)
	_, ok = GetEnv(env, "MALFORMED")
	assert.False(t, ok)
}
