package index

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// バイナリフォーマット:
//   dim(uint32 LE), count(uint32 LE), 続けてcount行分のfloat32（LE）列
// 行の並びは行位置の昇順で、読み戻すと挿入順がそのまま復元される

// WriteTo はインデックスをバイナリ形式で書き出す
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:], uint32(f.dim))
	binary.LittleEndian.PutUint32(header[4:], uint32(len(f.vecs)))

	n, err := w.Write(header)
	written := int64(n)
	if err != nil {
		return written, fmt.Errorf("failed to write index header: %w", err)
	}

	row := make([]byte, f.dim*4)
	for _, vec := range f.vecs {
		for i, v := range vec {
			binary.LittleEndian.PutUint32(row[i*4:], math.Float32bits(v))
		}
		n, err := w.Write(row)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write index row: %w", err)
		}
	}

	return written, nil
}

// ReadFlat はWriteToが書き出したバイナリからインデックスを復元する
func ReadFlat(r io.Reader) (*Flat, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("failed to read index header: %w", err)
	}

	dim := int(binary.LittleEndian.Uint32(header[0:]))
	count := int(binary.LittleEndian.Uint32(header[4:]))

	f, err := NewFlat(dim)
	if err != nil {
		return nil, err
	}

	row := make([]byte, dim*4)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, fmt.Errorf("failed to read index row %d: %w", i, err)
		}

		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[j*4:]))
		}
		f.vecs = append(f.vecs, vec)
	}

	// 末尾に余分なデータがないことを確認
	var trailing [1]byte
	if n, _ := r.Read(trailing[:]); n != 0 {
		return nil, fmt.Errorf("unexpected trailing data after %d index rows", count)
	}

	return f, nil
}
