// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates configuration for the configstore command.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Provider ProviderConfig `mapstructure:"provider"`
	Listener ListenerConfig `mapstructure:"listener"`
}

// StoreConfig names the settings table.
type StoreConfig struct {
	Table         string `mapstructure:"table"`
	Schema        string `mapstructure:"schema"`
	NotifyChannel string `mapstructure:"notify_channel"`
}

// ProviderConfig controls snapshot reloading.
type ProviderConfig struct {
	ReloadDelay time.Duration `mapstructure:"reload_delay"`
}

// ListenerConfig controls the NOTIFY listener.
type ListenerConfig struct {
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Table:         "settings",
			NotifyChannel: "configstore_changed",
		},
		Provider: ProviderConfig{
			ReloadDelay: 250 * time.Millisecond,
		},
		Listener: ListenerConfig{
			ReconnectDelay: 5 * time.Second,
		},
	}
}

// Load reads configuration from an optional config.yaml and environment
// variables. Environment variables use the prefix "CONFIGSTORE" and the dot
// in keys is replaced by an underscore, so "store.table" becomes
// "CONFIGSTORE_STORE_TABLE".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("CONFIGSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Store.Table) == "" {
		errs = append(errs, errors.New("store.table must not be empty"))
	}
	if c.Provider.ReloadDelay < 0 {
		errs = append(errs, errors.New("provider.reload_delay must not be negative"))
	}
	if c.Listener.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("listener.reconnect_delay must be positive"))
	}
	return errors.Join(errs...)
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
