package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Endpoint       string  `yaml:"endpoint"`
		APIKey         string  `yaml:"api_key"`
		APIVersion     string  `yaml:"api_version"`
		Deployment     string  `yaml:"deployment"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Database struct {
		URL       string `yaml:"url"`
		VectorDim int    `yaml:"vector_dim"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"database"`

	Scraper struct {
		BaseURL        string   `yaml:"base_url"`
		MaxDepth       int      `yaml:"max_depth"`
		MaxPages       int      `yaml:"max_pages"`
		RateLimit      float64  `yaml:"rate_limit"`
		IgnorePatterns []string `yaml:"ignore_patterns"`
		OutputDir      string   `yaml:"output_dir"`
	} `yaml:"scraper"`

	Web struct {
		Collection   string `yaml:"collection"`
		ChunkSize    int    `yaml:"chunk_size"`
		ChunkOverlap int    `yaml:"chunk_overlap"`
		SearchLimit  int    `yaml:"search_limit"`
	} `yaml:"web"`

	Docs struct {
		Collection   string `yaml:"collection"`
		ChunkSize    int    `yaml:"chunk_size"`
		ChunkOverlap int    `yaml:"chunk_overlap"`
		SearchLimit  int    `yaml:"search_limit"`
		MaxTokens    int    `yaml:"max_tokens"`
	} `yaml:"docs"`

	Export struct {
		ExcelPath string `yaml:"excel_path"`
	} `yaml:"export"`

	Server struct {
		Addr      string `yaml:"addr"`
		Streaming bool   `yaml:"streaming"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional, a real environment variable wins either way
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/campusbot/config.yaml"),
			"/etc/campusbot/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.APIVersion == "" {
		config.LLM.APIVersion = "2024-02-01"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "text-embedding-ada-002"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1000
	}

	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Scraper.BaseURL == "" {
		config.Scraper.BaseURL = "https://www.supdevinci.fr/"
	}
	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 3
	}
	if config.Scraper.MaxPages == 0 {
		config.Scraper.MaxPages = 100
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.OutputDir == "" {
		config.Scraper.OutputDir = "data/website_pages"
	}

	if config.Web.Collection == "" {
		config.Web.Collection = "web_pages"
	}
	if config.Web.ChunkSize == 0 {
		config.Web.ChunkSize = 1000
	}
	if config.Web.ChunkOverlap == 0 {
		config.Web.ChunkOverlap = 200
	}
	if config.Web.SearchLimit == 0 {
		config.Web.SearchLimit = 5
	}

	if config.Docs.Collection == "" {
		config.Docs.Collection = "documents"
	}
	if config.Docs.ChunkSize == 0 {
		config.Docs.ChunkSize = 800
	}
	if config.Docs.ChunkOverlap == 0 {
		config.Docs.ChunkOverlap = 150
	}
	if config.Docs.SearchLimit == 0 {
		config.Docs.SearchLimit = 4
	}
	if config.Docs.MaxTokens == 0 {
		config.Docs.MaxTokens = 512
	}

	if config.Export.ExcelPath == "" {
		config.Export.ExcelPath = "data/sup_de_vinci_students.xlsx"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT"); endpoint != "" {
		config.LLM.Endpoint = endpoint
	}
	if version := os.Getenv("AZURE_OPENAI_API_VERSION"); version != "" {
		config.LLM.APIVersion = version
	}
	if deployment := os.Getenv("AZURE_DEPLOYMENT_NAME"); deployment != "" {
		config.LLM.Deployment = deployment
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if excelPath := os.Getenv("EXCEL_FILEPATH"); excelPath != "" {
		config.Export.ExcelPath = filepath.Join(excelPath, "sup_de_vinci_students.xlsx")
	}
}
