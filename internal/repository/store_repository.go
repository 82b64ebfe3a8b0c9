// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"hrquery-go/internal/model"
	"hrquery-go/pkg/database"
)

// StoreRepository 封装对动态接入的结构化数据源的全部访问：
// schema 自省、行数探测与合成 SQL 的执行。
type StoreRepository interface {
	DatabaseType() string
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]model.Column, error)
	PrimaryKeys(ctx context.Context, table string) ([]string, error)
	ForeignKeys(ctx context.Context, table string) ([]model.ForeignKey, error)
	CountRows(ctx context.Context, table string) (int64, error)
	Query(ctx context.Context, query string) ([]map[string]interface{}, error)
	Close() error
}

// StoreOpener 按连接描述符打开一个数据源，便于在测试中替换实现。
type StoreOpener func(dsn string) (StoreRepository, error)

type mysqlStoreRepository struct {
	db *gorm.DB
}

// OpenMySQLStore 打开 MySQL 数据源并返回其仓库实现。
func OpenMySQLStore(dsn string) (StoreRepository, error) {
	db, err := database.OpenMySQL(dsn)
	if err != nil {
		return nil, err
	}
	return &mysqlStoreRepository{db: db}, nil
}

func (r *mysqlStoreRepository) DatabaseType() string { return "mysql" }

// Tables 列出当前库中的所有基础表。
func (r *mysqlStoreRepository) Tables(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Raw(
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		 ORDER BY table_name`).Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("查询表列表失败: %w", err)
	}
	return names, nil
}

// Columns 返回一张表的列定义，按定义顺序排列。
func (r *mysqlStoreRepository) Columns(ctx context.Context, table string) ([]model.Column, error) {
	rows, err := r.db.WithContext(ctx).Raw(
		`SELECT column_name, column_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = DATABASE() AND table_name = ?
		 ORDER BY ordinal_position`, table).Rows()
	if err != nil {
		return nil, fmt.Errorf("查询表 '%s' 的列信息失败: %w", table, err)
	}
	defer rows.Close()

	var columns []model.Column
	for rows.Next() {
		var name, colType, nullable string
		var def sql.NullString
		if err := rows.Scan(&name, &colType, &nullable, &def); err != nil {
			return nil, fmt.Errorf("扫描列信息失败: %w", err)
		}
		col := model.Column{Name: name, Type: colType, Nullable: nullable == "YES"}
		if def.Valid {
			v := def.String
			col.Default = &v
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// PrimaryKeys 返回一张表的主键列。
func (r *mysqlStoreRepository) PrimaryKeys(ctx context.Context, table string) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Raw(
		`SELECT column_name FROM information_schema.key_column_usage
		 WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'
		 ORDER BY ordinal_position`, table).Scan(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("查询表 '%s' 的主键失败: %w", table, err)
	}
	return keys, nil
}

// ForeignKeys 返回一张表的外键约束，同一约束的多个列聚合为一条。
func (r *mysqlStoreRepository) ForeignKeys(ctx context.Context, table string) ([]model.ForeignKey, error) {
	rows, err := r.db.WithContext(ctx).Raw(
		`SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
		 FROM information_schema.key_column_usage
		 WHERE table_schema = DATABASE() AND table_name = ? AND referenced_table_name IS NOT NULL
		 ORDER BY constraint_name, ordinal_position`, table).Rows()
	if err != nil {
		return nil, fmt.Errorf("查询表 '%s' 的外键失败: %w", table, err)
	}
	defer rows.Close()

	var fks []model.ForeignKey
	byConstraint := make(map[string]int)
	for rows.Next() {
		var constraint, column, refTable, refColumn string
		if err := rows.Scan(&constraint, &column, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("扫描外键信息失败: %w", err)
		}
		idx, ok := byConstraint[constraint]
		if !ok {
			fks = append(fks, model.ForeignKey{ReferredTable: refTable})
			idx = len(fks) - 1
			byConstraint[constraint] = idx
		}
		fks[idx].Columns = append(fks[idx].Columns, column)
		fks[idx].ReferredColumns = append(fks[idx].ReferredColumns, refColumn)
	}
	return fks, rows.Err()
}

// CountRows 探测一张表的行数。调用方容忍这里的失败。
func (r *mysqlStoreRepository) CountRows(ctx context.Context, table string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(fmt.Sprintf("SELECT COUNT(*) FROM `%s`", table)).Scan(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计表 '%s' 行数失败: %w", table, err)
	}
	return count, nil
}

// Query 执行一条合成的查询并把每行转为 map。
// 任何执行失败都以 ExecutionError 原样上抛，绝不静默吞掉。
func (r *mysqlStoreRepository) Query(ctx context.Context, query string) ([]map[string]interface{}, error) {
	rows, err := r.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, &model.ExecutionError{SQL: query, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &model.ExecutionError{SQL: query, Err: err}
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, &model.ExecutionError{SQL: query, Err: err}
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			// 驱动对文本列返回 []byte，转成 string 便于 JSON 序列化
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.ExecutionError{SQL: query, Err: err}
	}
	return results, nil
}

// Close 关闭底层连接池。
func (r *mysqlStoreRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
