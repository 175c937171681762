package config

const (
	defaultConfigPath        = "~/.config/matrixscreen/config.toml"
	defaultLogDir            = "~/.local/share/matrixscreen/logs"
	defaultAdditionalDataDir = "AdditionalData"
	defaultFijiBinary        = "ImageJ-linux64"
	defaultTileWidth         = 512
	defaultTileHeight        = 512
	defaultOverlap           = 0.1
	defaultStitchTimeout     = 1800
	defaultStitchWorkers     = 2
	defaultCompressWorkers   = 4
	defaultFusionMethod      = "Linear Blending"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

var defaultExtensions = []string{".tif", ".tiff", ".png", ".xml"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		Scan: Scan{
			Extensions:        append([]string(nil), defaultExtensions...),
			AdditionalDataDir: defaultAdditionalDataDir,
			ParseWorkers:      1,
		},
		Stitch: Stitch{
			FijiBinary:     defaultFijiBinary,
			TileWidth:      defaultTileWidth,
			TileHeight:     defaultTileHeight,
			Overlap:        defaultOverlap,
			TimeoutSeconds: defaultStitchTimeout,
			Workers:        defaultStitchWorkers,
			FusionMethod:   defaultFusionMethod,
		},
		Compress: Compress{
			Workers: defaultCompressWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
