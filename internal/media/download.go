package media

import (
	"fmt"
	"io"
	"net/http"
	"time"

	tele "gopkg.in/telebot.v4"
)

const DownloadTimeout = 30 * time.Second

// DownloadFile fetches a Telegram file's content by its FileID.
func DownloadFile(bot *tele.Bot, file *tele.File, maxBytes int64) ([]byte, error) {
	if file == nil || file.FileID == "" {
		return nil, fmt.Errorf("invalid file: missing FileID")
	}

	fileInfo, err := bot.FileByID(file.FileID)
	if err != nil {
		return nil, fmt.Errorf("get file info: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s",
		bot.Token, fileInfo.FilePath)

	client := &http.Client{Timeout: DownloadTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file content: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file exceeds %d byte limit", maxBytes)
	}
	return data, nil
}

// DownloadPhoto fetches a photo. Telegram already hands the bot the photo
// in several resolutions; the caller picks the largest before calling.
func DownloadPhoto(bot *tele.Bot, photo *tele.Photo) ([]byte, error) {
	if photo == nil || photo.FileID == "" {
		return nil, fmt.Errorf("invalid photo: missing FileID")
	}
	return DownloadFile(bot, &photo.File, MaxBytes*4)
}

// DownloadAndOptimize fetches a photo and shrinks it for the vision model.
func DownloadAndOptimize(bot *tele.Bot, photo *tele.Photo) (*Image, error) {
	data, err := DownloadPhoto(bot, photo)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	optimized, err := Optimize(data)
	if err != nil {
		return nil, fmt.Errorf("optimize photo: %w", err)
	}
	return optimized, nil
}
