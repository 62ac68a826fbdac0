package runner

import (
	"errors"
	"fmt"
	"os"

	v1 "github.com/pdfebc/pdfebc-web/apis/v1"
)

// BuildVariables creates the variables available to ${VAR} expansion: the built-in
// CACHE_DIR and CONFIG_NAME plus every allowed environment variable. An allowed variable
// that is not set is an error.
func BuildVariables(cfg v1.ServerConfig, allowedEnv []string) (map[string]string, error) {
	cacheDir, err := userCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}

	variables := map[string]string{
		"CACHE_DIR":   cacheDir,
		"CONFIG_NAME": cfg.Metadata.Name,
	}

	var errs error
	for _, envName := range allowedEnv {
		val, ok := os.LookupEnv(envName)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", envName))
			continue
		}
		variables[envName] = val
	}

	if errs != nil {
		return nil, errs
	}

	return variables, nil
}
