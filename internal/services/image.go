package services

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrImageTooLarge = errors.New("image is too large")
	ErrNotAnImage    = errors.New("file is not an image")
	ErrInvalidCover  = errors.New("cover image must be an http(s) or data:image URL")
)

// EncodeImage 读取上传的图片并转换为可直接嵌入的 data URL
// 类型由文件内容判断，不信任客户端提供的 Content-Type
func EncodeImage(r io.Reader, maxBytes int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return "", ErrImageTooLarge
	}
	if len(data) == 0 {
		return "", ErrNotAnImage
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", ErrNotAnImage
	}
	// 去掉 charset 等参数
	mediaType := strings.SplitN(mime.String(), ";", 2)[0]

	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// NormalizeCoverImage 校验运营者直接填写的封面地址
func NormalizeCoverImage(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.HasPrefix(raw, "data:image/") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidCover
	}
	return u.String(), nil
}

// DecodeImage 把 data URL 还原为图片字节，类型以内容检测为准
func DecodeImage(dataURL string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, "", ErrNotAnImage
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", ErrNotAnImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, "", ErrNotAnImage
	}
	return data, strings.SplitN(mime.String(), ";", 2)[0], nil
}
