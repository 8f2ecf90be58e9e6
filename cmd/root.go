package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	apiURL    string
	dbPath    string
	redisURL  string
	logLevel  string
	intakeDir string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "evidence-console",
	Short: "Terminal console for AI-authenticity media forensics",
	Long: `Evidence Console is the investigator's terminal for CyberShield India's
media forensics service. It submits images and videos for AI-generation analysis
and walks each case through its evidence workflow.

Features:
- Upload media from a watched intake folder
- Analysis results with blockchain anchoring status
- Digital footprint (file, EXIF, GPS and network indicators)
- Cyber crime complaint drafting for AI-generated media
- Case dashboard, report download and case/transaction verification
- Local SQLite custody journal, optional Redis activity sharing`,
	RunE: runConsole,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.evidence-console.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8000/api/detect", "Detection service base URL")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/custody.db", "SQLite custody journal path")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis URL for shared activity (empty keeps activity local)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&intakeDir, "intake-dir", "./data/intake", "Folder watched for media to analyze")

	// Bind flags to viper
	viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("api"))
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("intake.dir", rootCmd.PersistentFlags().Lookup("intake-dir"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".evidence-console" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".evidence-console")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8000/api/detect")
	viper.SetDefault("api.timeout", 60*time.Second)
	viper.SetDefault("api.list_limit", 100)
	viper.SetDefault("api.max_list_limit", 500)
	viper.SetDefault("explorer.base_url", "https://sepolia.etherscan.io")
	viper.SetDefault("database.path", "./data/custody.db")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("intake.dir", "./data/intake")
	viper.SetDefault("reports.dir", "./reports")
	viper.SetDefault("ui.theme", "dark")
	viper.SetDefault("actor", "investigator")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:      viper.GetString("api.base_url"),
			Timeout:      viper.GetDuration("api.timeout"),
			ListLimit:    viper.GetInt("api.list_limit"),
			MaxListLimit: viper.GetInt("api.max_list_limit"),
		},
		Explorer: ExplorerConfig{
			BaseURL: viper.GetString("explorer.base_url"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
		Intake: IntakeConfig{
			Dir: viper.GetString("intake.dir"),
		},
		Reports: ReportsConfig{
			Dir: viper.GetString("reports.dir"),
		},
		UI: UIConfig{
			Theme: viper.GetString("ui.theme"),
		},
		Actor: viper.GetString("actor"),
	}
}

// Config represents the application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Explorer ExplorerConfig `mapstructure:"explorer"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Reports  ReportsConfig  `mapstructure:"reports"`
	UI       UIConfig       `mapstructure:"ui"`
	Actor    string         `mapstructure:"actor"`
}

type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ListLimit    int           `mapstructure:"list_limit"`
	MaxListLimit int           `mapstructure:"max_list_limit"`
}

type ExplorerConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type IntakeConfig struct {
	Dir string `mapstructure:"dir"`
}

type ReportsConfig struct {
	Dir string `mapstructure:"dir"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}
