// Package config loads the handful of settings a storagecore process
// needs to assemble a DiskManager, a buffer Pool, and a Tree: pool
// capacity, the page size, the database file path, and which key codec
// to index with.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// StorageConfig mirrors the reference project's NovaSqlConfig shape: a
// small mapstructure-tagged tree unmarshaled straight out of YAML.
type StorageConfig struct {
	Storage struct {
		PoolSize int    `mapstructure:"pool_size"`
		PageSize int    `mapstructure:"page_size"`
		DBFile   string `mapstructure:"db_file"`
		KeyCodec string `mapstructure:"key_codec"`
	} `mapstructure:"storage"`
}

// Defaults that LoadConfig fills in for any field the file leaves zero.
// A StorageConfig built without LoadConfig gets no defaults applied.
const (
	DefaultPoolSize = 64
	DefaultPageSize = 4096
	DefaultDBFile   = "storagecore.db"
	DefaultKeyCodec = "int32"
)

// LoadConfig reads path as YAML via viper, the way the reference
// project's LoadConfig does, and fills in documented defaults for any
// field the file left zero.
func LoadConfig(path string) (*StorageConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg StorageConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *StorageConfig) applyDefaults() {
	if c.Storage.PoolSize == 0 {
		c.Storage.PoolSize = DefaultPoolSize
	}
	if c.Storage.PageSize == 0 {
		c.Storage.PageSize = DefaultPageSize
	}
	if c.Storage.DBFile == "" {
		c.Storage.DBFile = DefaultDBFile
	}
	if c.Storage.KeyCodec == "" {
		c.Storage.KeyCodec = DefaultKeyCodec
	}
}
