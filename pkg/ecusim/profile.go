package ecusim

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes what a simulated ECU answers.
type Profile struct {
	RequestID uint32   `yaml:"request_id"`
	VIN       string   `yaml:"vin"`
	DTCs      []string `yaml:"dtcs"`
	Sessions  []int    `yaml:"sessions"`
	// Seed and KeyMask are hex strings, the expected key is seed XOR mask
	Seed    string `yaml:"seed"`
	KeyMask string `yaml:"key_mask"`
	// Pending is the number of response pending answers sent before every real answer
	Pending           int               `yaml:"pending"`
	MemoryNeedsUnlock bool              `yaml:"memory_needs_unlock"`
	Memory            []MemoryRegion    `yaml:"memory"`
	DIDs              map[uint16]string `yaml:"dids"`
}

// MemoryRegion is Data (hex) at Address, grown to Size bytes with a counting pattern.
type MemoryRegion struct {
	Address uint32 `yaml:"address"`
	Data    string `yaml:"data"`
	Size    int    `yaml:"size"`
}

func DefaultProfile() *Profile {
	return &Profile{
		RequestID:         0x7E0,
		VIN:               "YS3FD49Y441012345",
		DTCs:              []string{"P0420", "C0567", "U2103"},
		Sessions:          []int{0x01, 0x02, 0x03},
		Seed:              "A1B2C3D4",
		KeyMask:           "5A5A5A5A",
		Pending:           1,
		MemoryNeedsUnlock: true,
		Memory: []MemoryRegion{
			{Address: 0x00000000, Data: "4D5A", Size: 0x400},
			{Address: 0x00100000, Size: 0x2000},
		},
		DIDs: map[uint16]string{
			0xF190: "YS3FD49Y441012345",
			0xF18C: "SIM000001",
			0xF195: "1.0.0",
		},
	}
}

// LoadProfile reads a YAML profile, fields missing from the file keep their DefaultProfile value.
func LoadProfile(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := DefaultProfile()
	if err := yaml.Unmarshal(b, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return p, nil
}

func (r MemoryRegion) bytes() ([]byte, error) {
	data, err := hex.DecodeString(r.Data)
	if err != nil {
		return nil, fmt.Errorf("memory region 0x%X: %w", r.Address, err)
	}
	for i := len(data); i < r.Size; i++ {
		data = append(data, byte(i))
	}
	return data, nil
}
