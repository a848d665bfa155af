package cli

import (
	"github.com/codewave/panel/internal/config"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:          "codewave",
	Short:        "Codewave PDF analysis panel",
	Long:         "Serves the Codewave upload panel and forwards PDF files to the analysis service",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newVersionCmd())
}

// newLogger creates the root logger shared by echo and the upload panels.
func newLogger(level string) *log.Logger {
	logger := log.New("codewave")
	lvl, _ := config.ParseLogLevel(level)
	logger.SetLevel(lvl)
	logger.SetHeader("${time_rfc3339} ${level} ${prefix}")
	return logger
}
