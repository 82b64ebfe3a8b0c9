// Package model 包含了应用的数据模型定义。
package model

import "fmt"

// ConnectionError 表示结构化数据源无法连接，schema 发现因此中止。
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("数据源连接失败: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ExecutionError 表示一条已生成的 SQL 在数据源上执行失败，携带底层驱动的原始信息。
type ExecutionError struct {
	SQL string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("SQL 执行失败: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// ExtractionError 表示单个文档无法解码或解析。
// 批量导入中它只隔离当前文档，绝不中断整个批次。
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("文档 '%s' 提取失败: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// DecodeError 表示纯文本文件在尝试所有候选编码后仍无法解码。
type DecodeError struct {
	Filename  string
	Encodings []string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("文件 '%s' 无法用任何候选编码解码: %v", e.Filename, e.Encodings)
}

// ValidationError 表示查询文本包含不允许的操作，执行被阻止。
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("查询校验未通过: %v", e.Errors)
}
