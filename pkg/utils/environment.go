package utils

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const environmentPrefix = "HVAC_BRIDGE_"

func getValueFromEnvironmentVariable(variableName, defaultValue string) string {
	value := os.Getenv(environmentPrefix + variableName)
	if value != "" {
		return value
	}
	return defaultValue
}

func overrideString(target *string, variableName string) {
	*target = getValueFromEnvironmentVariable(variableName, *target)
}

func overrideBool(target *bool, variableName string) error {
	value := getValueFromEnvironmentVariable(variableName, "")
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return errors.Wrapf(err, "%s%s", environmentPrefix, variableName)
	}
	*target = parsed
	return nil
}

func overrideInt(target *int, variableName string) error {
	value := getValueFromEnvironmentVariable(variableName, "")
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return errors.Wrapf(err, "%s%s", environmentPrefix, variableName)
	}
	*target = parsed
	return nil
}

func overrideUint(target *uint, variableName string) error {
	value := getValueFromEnvironmentVariable(variableName, "")
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseUint(value, 10, 0)
	if err != nil {
		return errors.Wrapf(err, "%s%s", environmentPrefix, variableName)
	}
	*target = uint(parsed)
	return nil
}

func overrideFloat(target *float64, variableName string) error {
	value := getValueFromEnvironmentVariable(variableName, "")
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return errors.Wrapf(err, "%s%s", environmentPrefix, variableName)
	}
	*target = parsed
	return nil
}

func overrideDuration(target *time.Duration, variableName string) error {
	value := getValueFromEnvironmentVariable(variableName, "")
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return errors.Wrapf(err, "%s%s", environmentPrefix, variableName)
	}
	*target = parsed
	return nil
}

// overrideList reads a comma separated list, dropping empty items.
func overrideList(target *[]string, variableName string) {
	value := getValueFromEnvironmentVariable(variableName, "")
	if value == "" {
		return
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*target = items
}
