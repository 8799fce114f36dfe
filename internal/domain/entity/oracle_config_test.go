package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testAsset  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	testSource = common.HexToAddress("0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419")
)

func TestNewRoundBasedConfig(t *testing.T) {
	tests := []struct {
		name           string
		asset          common.Address
		source         common.Address
		timeout        time.Duration
		nativeDecimals uint8
		ethIndexed     bool
		wantErr        bool
		errContains    string
	}{
		{
			name:           "valid config",
			asset:          testAsset,
			source:         testSource,
			timeout:        24 * time.Hour,
			nativeDecimals: 8,
		},
		{
			name:           "valid eth-indexed config",
			asset:          testAsset,
			source:         testSource,
			timeout:        time.Hour,
			nativeDecimals: 18,
			ethIndexed:     true,
		},
		{
			name:           "zero asset",
			asset:          common.Address{},
			source:         testSource,
			timeout:        time.Hour,
			nativeDecimals: 8,
			wantErr:        true,
			errContains:    "asset must not be the zero address",
		},
		{
			name:           "zero source",
			asset:          testAsset,
			source:         common.Address{},
			timeout:        time.Hour,
			nativeDecimals: 8,
			wantErr:        true,
			errContains:    "source must not be the zero address",
		},
		{
			name:           "zero timeout",
			asset:          testAsset,
			source:         testSource,
			timeout:        0,
			nativeDecimals: 8,
			wantErr:        true,
			errContains:    "timeout must be positive",
		},
		{
			name:           "negative timeout",
			asset:          testAsset,
			source:         testSource,
			timeout:        -time.Hour,
			nativeDecimals: 8,
			wantErr:        true,
			errContains:    "timeout must be positive",
		},
		{
			name:        "zero native decimals",
			asset:       testAsset,
			source:      testSource,
			timeout:     time.Hour,
			wantErr:     true,
			errContains: "nativeDecimals must not be zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewRoundBasedConfig(tt.asset, tt.source, tt.timeout, tt.nativeDecimals, tt.ethIndexed)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewRoundBasedConfig() expected error, got nil")
					return
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewRoundBasedConfig() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Errorf("NewRoundBasedConfig() unexpected error = %v", err)
				return
			}
			if cfg.Kind != SourceRoundBased {
				t.Errorf("Kind = %v, want %v", cfg.Kind, SourceRoundBased)
			}
			if cfg.Timeout != tt.timeout {
				t.Errorf("Timeout = %v, want %v", cfg.Timeout, tt.timeout)
			}
			if cfg.NativeDecimals != tt.nativeDecimals {
				t.Errorf("NativeDecimals = %v, want %v", cfg.NativeDecimals, tt.nativeDecimals)
			}
			if cfg.EthIndexed != tt.ethIndexed {
				t.Errorf("EthIndexed = %v, want %v", cfg.EthIndexed, tt.ethIndexed)
			}
		})
	}
}

func TestNewIndexBasedConfig(t *testing.T) {
	tests := []struct {
		name          string
		asset         common.Address
		source        common.Address
		index         int
		indexDecimals uint8
		wantErr       bool
		errContains   string
	}{
		{
			name:   "valid config",
			asset:  testAsset,
			source: testSource,
			index:  3,
		},
		{
			name:          "valid config with decimal shift",
			asset:         testAsset,
			source:        testSource,
			index:         0,
			indexDecimals: 8,
		},
		{
			name:        "zero asset",
			asset:       common.Address{},
			source:      testSource,
			index:       0,
			wantErr:     true,
			errContains: "asset must not be the zero address",
		},
		{
			name:        "negative index",
			asset:       testAsset,
			source:      testSource,
			index:       -1,
			wantErr:     true,
			errContains: "index must be non-negative",
		},
		{
			name:          "index decimals beyond spot convention",
			asset:         testAsset,
			source:        testSource,
			index:         0,
			indexDecimals: 9,
			wantErr:       true,
			errContains:   "indexDecimals must not exceed 8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewIndexBasedConfig(tt.asset, tt.source, tt.index, tt.indexDecimals)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewIndexBasedConfig() expected error, got nil")
					return
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewIndexBasedConfig() error = %v, want error containing %v", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Errorf("NewIndexBasedConfig() unexpected error = %v", err)
				return
			}
			if cfg.Kind != SourceIndexBased {
				t.Errorf("Kind = %v, want %v", cfg.Kind, SourceIndexBased)
			}
			if cfg.Timeout != DefaultIndexTimeout {
				t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultIndexTimeout)
			}
			if cfg.Index != tt.index {
				t.Errorf("Index = %v, want %v", cfg.Index, tt.index)
			}
			if cfg.EthIndexed {
				t.Errorf("EthIndexed = true, want false for index-based config")
			}
		})
	}
}

func TestSourceKind_String(t *testing.T) {
	if got := SourceRoundBased.String(); got != "round_based" {
		t.Errorf("SourceRoundBased.String() = %v, want round_based", got)
	}
	if got := SourceIndexBased.String(); got != "index_based" {
		t.Errorf("SourceIndexBased.String() = %v, want index_based", got)
	}
	if got := SourceKind(7).String(); got != "unknown(7)" {
		t.Errorf("SourceKind(7).String() = %v, want unknown(7)", got)
	}
}
