package errors

import "errors"

// 数据源与业务层共用的错误

// ErrSourceUnavailable 上游数据源（文件/远程/数据库）读取失败
var ErrSourceUnavailable = errors.New("课表数据源暂不可用")

// ErrReadOnly 当前数据源只读，不接受写入
var ErrReadOnly = errors.New("当前数据源为只读")

// ErrMalformedDocument 数据文档不是预期的课表/校历结构
var ErrMalformedDocument = errors.New("数据文档格式无效")
