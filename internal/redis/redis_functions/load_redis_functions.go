package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed *.lua
var fs embed.FS

// Libraries returns the embedded Lua libraries by file name.
func Libraries() (map[string]string, error) {
	files, err := fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read embed dir: %w", err)
	}
	libs := make(map[string]string, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}
		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return nil, err
		}
		libs[f.Name()] = string(code)
	}
	return libs, nil
}

// LoadAll finds every embedded Lua file and loads/replaces it in Redis.
func LoadAll(ctx context.Context, rdb redis.Cmdable) error {
	libs, err := Libraries()
	if err != nil {
		return err
	}
	for name, code := range libs {
		if err := rdb.FunctionLoadReplace(ctx, code).Err(); err != nil {
			return fmt.Errorf("load lua %s: %w", name, err)
		}
		zap.L().Info("redis.function_loaded", zap.String("file", name))
	}
	return nil
}
