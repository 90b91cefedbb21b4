package controltask

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/gengqx/apollo/internal/calibration"
	"github.com/gengqx/apollo/internal/logging"
	"github.com/gengqx/apollo/internal/pluginpath"
	"github.com/gengqx/apollo/internal/textconf"
)

type testConf struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
}

func writeConf(t *testing.T, root, class, content string) string {
	t.Helper()
	path := filepath.Join(root, class, DefaultConfRelativePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	g := NewWithT(t)
	root := t.TempDir()
	want := writeConf(t, root, "StubController", "kp: 1.5\nki: 0.2\n")

	b := NewBase("StubController", Deps{
		Resolver: pluginpath.NewManager(nil, root),
		Logger:   logging.NewTestLogger(t),
	})

	var conf testConf
	g.Expect(b.LoadConfig(&conf)).To(Succeed())
	g.Expect(conf).To(Equal(testConf{Kp: 1.5, Ki: 0.2}))
	g.Expect(b.ConfigPath()).To(Equal(want))
	g.Expect(b.Name()).To(Equal("StubController"))
}

func TestLoadConfigUsesDeclaredName(t *testing.T) {
	g := NewWithT(t)
	var asked string
	b := NewBase("LatController", Deps{Resolver: pluginpath.ResolverFunc(func(c, rel string) (string, error) {
		asked = c + "|" + rel
		return "", pluginpath.ErrConfPathUnresolved
	})})

	var conf testConf
	g.Expect(b.LoadConfig(&conf)).NotTo(Succeed())
	g.Expect(asked).To(Equal("LatController|conf/controller_conf.pb.txt"))
}

func TestLoadConfigFailures(t *testing.T) {
	root := t.TempDir()
	writeConf(t, root, "Malformed", "kp: [oops\n")
	writeConf(t, root, "UnknownField", "kd: 3\n")

	tests := []struct {
		name     string
		class    string
		resolver pluginpath.Resolver
		want     error
	}{
		{"no resolver", "StubController", nil, ErrConfigPathUnresolved},
		{"unresolved", "Missing", pluginpath.NewManager(nil, root), ErrConfigPathUnresolved},
		{"malformed", "Malformed", pluginpath.NewManager(nil, root), ErrConfigParseFailure},
		{"unknown field", "UnknownField", pluginpath.NewManager(nil, root), ErrConfigParseFailure},
	}

	for _, tt := range tests {
		b := NewBase(tt.class, Deps{Resolver: tt.resolver})
		var conf testConf
		err := b.LoadConfig(&conf)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
		if b.ConfigPath() != "" {
			t.Errorf("%s: failed load must not record a config path", tt.name)
		}
	}
}

func TestLoadConfigUnresolvedKeepsCause(t *testing.T) {
	b := NewBase("Missing", Deps{Resolver: pluginpath.NewManager(nil, t.TempDir())})
	var conf testConf
	err := b.LoadConfig(&conf)
	if !errors.Is(err, pluginpath.ErrConfPathUnresolved) {
		t.Errorf("expected resolver cause in chain, got %v", err)
	}
}

func TestLoadConfigResolvedPathMissing(t *testing.T) {
	g := NewWithT(t)
	gone := filepath.Join(t.TempDir(), "gone", DefaultConfRelativePath)
	b := NewBase("LonController", Deps{Resolver: pluginpath.ResolverFunc(func(string, string) (string, error) {
		return gone, nil
	})})

	var conf testConf
	err := b.LoadConfig(&conf)
	g.Expect(errors.Is(err, ErrConfigPathUnresolved)).To(BeTrue(), "got %v", err)
	g.Expect(errors.Is(err, ErrConfigParseFailure)).To(BeFalse())
	g.Expect(errors.Is(err, textconf.ErrNotFound)).To(BeTrue())
	g.Expect(b.ConfigPath()).To(BeEmpty())
}

const calibrationText = `calibration:
  - speed: 0
    acceleration: 0
    command: 0
  - speed: 0
    acceleration: 1
    command: 20
`

func TestLoadCalibrationTable(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "calibration_table.pb.txt")
	g.Expect(os.WriteFile(path, []byte(calibrationText), 0644)).To(Succeed())

	b := NewBase("LonController", Deps{CalibrationTableFile: path})
	var table calibration.Table
	g.Expect(b.LoadCalibrationTable(&table)).To(Succeed())
	g.Expect(table.Calibration).To(HaveLen(2))
	g.Expect(table.Calibration[1].Command).To(Equal(20.0))
}

func TestLoadCalibrationTableFailureClearsOutput(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pb.txt")
	empty := filepath.Join(dir, "empty.pb.txt")
	g.Expect(os.WriteFile(good, []byte(calibrationText), 0644)).To(Succeed())
	g.Expect(os.WriteFile(empty, []byte("calibration: []\n"), 0644)).To(Succeed())

	var table calibration.Table
	g.Expect(NewBase("A", Deps{CalibrationTableFile: good}).LoadCalibrationTable(&table)).To(Succeed())
	g.Expect(table.Calibration).NotTo(BeEmpty())

	for _, path := range []string{filepath.Join(dir, "missing.pb.txt"), empty} {
		table2 := table
		err := NewBase("A", Deps{CalibrationTableFile: path}).LoadCalibrationTable(&table2)
		g.Expect(errors.Is(err, ErrCalibrationParseFailure)).To(BeTrue(), path)
		g.Expect(table2.Calibration).To(BeEmpty(), "no leftover data from a prior load")
	}

	g.Expect(errors.Is(NewBase("A", Deps{}).LoadCalibrationTable(nil), ErrCalibrationParseFailure)).To(BeTrue())
}

func TestTaskErrorWrap(t *testing.T) {
	g := NewWithT(t)
	g.Expect(Wrap("Stub", "init", nil)).To(BeNil())

	err := Wrap("Stub", "init", ErrConfigParseFailure)
	g.Expect(errors.Is(err, ErrConfigParseFailure)).To(BeTrue())
	g.Expect(err.Error()).To(HavePrefix("Stub init: "))

	var te *TaskError
	g.Expect(errors.As(err, &te)).To(BeTrue())
	g.Expect(te.Task).To(Equal("Stub"))
}
