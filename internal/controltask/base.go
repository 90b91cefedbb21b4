package controltask

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gengqx/apollo/internal/calibration"
	"github.com/gengqx/apollo/internal/flags"
	"github.com/gengqx/apollo/internal/pluginpath"
	"github.com/gengqx/apollo/internal/textconf"
)

// Deps are the collaborators a task needs to locate and read its files.
type Deps struct {
	Resolver pluginpath.Resolver
	Logger   *zap.SugaredLogger
	// CalibrationTableFile overrides the --calibration_table_file flag when set.
	CalibrationTableFile string
}

// Base carries a task's declared name and the configuration helpers.
// Embed it by pointer in concrete controllers.
type Base struct {
	name       string
	deps       Deps
	logger     *zap.SugaredLogger
	configPath string
}

func NewBase(name string, deps Deps) *Base {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Base{
		name:   name,
		deps:   deps,
		logger: logger.Named(name),
	}
}

func (b *Base) Name() string {
	return b.name
}

func (b *Base) Logger() *zap.SugaredLogger {
	return b.logger
}

// ConfigPath is the file the last successful LoadConfig read from.
func (b *Base) ConfigPath() string {
	return b.configPath
}

// LoadConfig resolves DefaultConfRelativePath for this task's name and
// parses the file into cfg. On error cfg may be partially populated and must
// not be trusted.
func (b *Base) LoadConfig(cfg any) error {
	if b.deps.Resolver == nil {
		b.logger.Errorw("load config failed: no plugin path resolver", "class", b.name)
		return fmt.Errorf("%w: no resolver for %s", ErrConfigPathUnresolved, b.name)
	}

	path, err := b.deps.Resolver.ConfPath(b.name, DefaultConfRelativePath)
	if err != nil {
		b.logger.Errorw("load config failed", "class", b.name, "path", DefaultConfRelativePath, "error", err)
		return fmt.Errorf("%w: %w", ErrConfigPathUnresolved, err)
	}

	if err := textconf.ParseFromFile(path, cfg); err != nil {
		b.logger.Errorw("load config failed", "class", b.name, "path", path, "error", err)
		if errors.Is(err, textconf.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrConfigPathUnresolved, err)
		}
		return fmt.Errorf("%w: %w", ErrConfigParseFailure, err)
	}

	b.configPath = path
	b.logger.Infow("loaded config", "class", b.name, "path", path)
	return nil
}

func (b *Base) calibrationTableFile() string {
	if b.deps.CalibrationTableFile != "" {
		return b.deps.CalibrationTableFile
	}
	return flags.CalibrationTableFile()
}

// LoadCalibrationTable reads the globally configured calibration file into
// table. On failure table is left empty, never holding data from an earlier load.
func (b *Base) LoadCalibrationTable(table *calibration.Table) error {
	if table == nil {
		return fmt.Errorf("%w: nil table", ErrCalibrationParseFailure)
	}
	path := b.calibrationTableFile()

	var loaded calibration.Table
	err := textconf.ParseFromFile(path, &loaded)
	if err == nil {
		err = loaded.Validate()
	}
	if err != nil {
		*table = calibration.Table{}
		b.logger.Errorw("load calibration table failed", "path", path, "error", err)
		return fmt.Errorf("%w: %w", ErrCalibrationParseFailure, err)
	}

	*table = loaded
	b.logger.Infow("loaded calibration table", "path", path, "entries", len(loaded.Calibration))
	return nil
}
