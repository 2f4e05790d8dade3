package source

import (
	"encoding/json"
	"fmt"
	"os"

	"academic-info/internal/model"
	pkgerrors "academic-info/pkg/errors"
)

// LoadCalendar 读取校历 JSON 文件
func LoadCalendar(path string) (*model.Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSourceUnavailable, err)
	}
	var cal model.Calendar
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("%w: 校历 %v", pkgerrors.ErrMalformedDocument, err)
	}
	return &cal, nil
}
