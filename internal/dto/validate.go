package dto

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"academic-info/internal/resolver"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验器注册课表相关的 tag：
//
//	timerange  "H:MM - H:MM"，结束晚于开始
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("timerange", func(fl validator.FieldLevel) bool {
			_, err := resolver.ParseRange(fl.Field().String())
			return err == nil
		})
	})
}
