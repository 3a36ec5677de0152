package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrCorrupted WAL 中間出現無法解析的紀錄 (非檔尾的殘缺寫入)
var ErrCorrupted = errors.New("wal: corrupted record")

// file 為 *os.File 的子集，方便測試注入寫入 / 刷盤失敗
type file interface {
	io.ReadWriteSeeker
	Truncate(size int64) error
	Sync() error
	Close() error
}

// WAL 以 JSON Lines 格式追加寫入的 Write-Ahead Log
//
// 每筆紀錄以一次 Write 寫入並 fsync；Write 失敗時截斷回寫入前的長度，
// 檔案中只會留下完整的紀錄
type WAL struct {
	mu   sync.Mutex
	file file
}

// NewWAL 開啟或建立一個 WAL 檔案 (權限 0600，僅擁有者可讀寫)
func NewWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	return &WAL{file: f}, nil
}

// Write 寫入一筆資料並刷入硬碟
//
// 參數:
//
//	v: 任意可 JSON 編碼的值
//
// 回傳:
//
//	error: 編碼、寫入或 fsync 失敗；失敗時檔案維持原狀
func (w *WAL) Write(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	offset, err := w.file.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := w.file.Write(line); err != nil {
		return w.rollback(offset, err)
	}
	if err := w.file.Sync(); err != nil {
		return w.rollback(offset, err)
	}
	return nil
}

// rollback 截斷到 offset，讓失敗的紀錄不會在重放時出現
func (w *WAL) rollback(offset int64, cause error) error {
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("%w (truncate: %v)", cause, err)
	}
	if _, err := w.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w (seek: %v)", cause, err)
	}
	return cause
}

// Close 關閉檔案
func (w *WAL) Close() error {
	return w.file.Close()
}

// ReadAll 依寫入順序逐筆讀取，callback 收到不含換行的 JSON
// 檔尾殘缺的紀錄 (寫到一半當機) 會被截斷捨棄；中間的壞紀錄回傳 ErrCorrupted
func (w *WAL) ReadAll(callback func(jsonRaw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(w.file)
	var offset int64
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if len(line) == 0 {
			return nil
		}

		complete := line[len(line)-1] == '\n'
		raw := bytes.TrimSpace(line)
		if complete && len(raw) == 0 {
			offset += int64(len(line))
			continue
		}
		if !complete || !json.Valid(raw) {
			if _, peekErr := reader.Peek(1); complete && peekErr == nil {
				return fmt.Errorf("%w at offset %d", ErrCorrupted, offset)
			}
			return w.file.Truncate(offset)
		}

		if err := callback(raw); err != nil {
			return err
		}
		offset += int64(len(line))
	}
}
