package utils

import (
	"os"
	"path/filepath"

	"github.com/janael-pinheiro/hvac-bridge/pkg/entities"
	"gopkg.in/yaml.v2"
)

type config interface {
	entities.BridgeConfig | []string
}

func readTextFile(filepathName string) ([]byte, error) {
	fileContent, err := os.ReadFile(filepath.Clean(filepathName))
	return fileContent, err
}

// ConfigurationParser decodes the YAML file at filepathName over configEntity,
// so fields absent from the file keep the values configEntity already holds.
func ConfigurationParser[T config](filepathName string, configEntity T) (T, error) {
	fileContent, err := readTextFile(filepath.Clean(filepathName))
	if err != nil {
		return configEntity, err
	}

	err = yaml.UnmarshalStrict(fileContent, &configEntity)
	return configEntity, err
}
