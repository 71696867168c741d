package model

import (
	"encoding/gob"
	"io"
	"path/filepath"

	"github.com/YuminosukeSato/diamondprice/pkg/errors"
	"github.com/spf13/afero"
)

// SaveModel はモデルをファイルに保存する
//
// 一時ファイルに書き込んでからリネームするため、失敗時に
// 途中まで書かれたファイルが残ることはない。
//
// パラメータ:
//   - fs: 保存先のファイルシステム
//   - model: 保存するモデル（gobでエンコード可能な値）
//   - filename: 保存先のファイルパス
//
// 使用例:
//
//	err := model.SaveModel(afero.NewOsFs(), artifact, "model.gob")
func SaveModel(fs afero.Fs, model interface{}, filename string) (err error) {
	return WriteFileAtomic(fs, filename, func(w io.Writer) error {
		return SaveModelToWriter(model, w)
	})
}

// LoadModel はファイルからモデルを読み込む
//
// パラメータ:
//   - fs: 読み込み元のファイルシステム
//   - model: 読み込み先のモデル（ポインタ）
//   - filename: 読み込み元のファイルパス
func LoadModel(fs afero.Fs, model interface{}, filename string) error {
	file, err := fs.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open model file %s", filename)
	}
	defer file.Close()

	if err := LoadModelFromReader(model, file); err != nil {
		return errors.Wrapf(err, "failed to load model from %s", filename)
	}
	return nil
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	if err := decoder.Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// WriteFileAtomic は write の出力を同じディレクトリの一時ファイルに書き、
// 成功した場合のみ filename にリネームする
func WriteFileAtomic(fs afero.Fs, filename string, write func(w io.Writer) error) (err error) {
	dir := filepath.Dir(filename)
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary file for %s", filename)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = fs.Remove(tmpName)
		}
	}()

	if err = write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "failed to close temporary file for %s", filename)
	}
	if err = fs.Rename(tmpName, filename); err != nil {
		return errors.Wrapf(err, "failed to move temporary file to %s", filename)
	}
	return nil
}
