package botkit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseJSON разбирает аргументы команды как json объект
func ParseJSON[T any](src string) (T, error) {
	var args T

	if err := json.Unmarshal([]byte(src), &args); err != nil {
		return *(new(T)), fmt.Errorf("invalid arguments, expected json: %w", err)
	}

	return args, nil
}

// ParseID разбирает единственный числовой аргумент команды
func ParseID(src string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(src), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", src, err)
	}
	return id, nil
}
