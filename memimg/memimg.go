package memimg

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fsnotify/fsnotify"
)

// IconSize 图标统一缩放到的边长
const IconSize = 16

var (
	icons      = make(map[string]image.Image)
	iconsMutex sync.RWMutex
)

// iconKey 文件名去掉扩展名即为物品种类，例如 sugar.png -> sugar
func iconKey(path string) string {
	base := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// LoadIcons 读取目录下的全部图标，替换现有缓存
func LoadIcons(directory string) error {
	loaded := make(map[string]image.Image)
	err := filepath.Walk(directory, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isImageFile(path) {
			return nil
		}
		img, err := loadImage(path)
		if err != nil {
			return err
		}
		loaded[iconKey(path)] = img
		return nil
	})
	if err != nil {
		return err
	}
	iconsMutex.Lock()
	icons = loaded
	iconsMutex.Unlock()
	return nil
}

func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode icon %s: %w", path, err)
	}
	return imaging.Fit(img, IconSize, IconSize, imaging.Lanczos), nil
}

// WatchIcons 监听图标目录，直到 stop 被关闭
func WatchIcons(directory string, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(directory); err != nil {
		return err
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isImageFile(event.Name) {
				continue
			}
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				img, err := loadImage(event.Name)
				if err != nil {
					// 文件可能还没写完，等下一次写事件
					continue
				}
				SetIcon(iconKey(event.Name), img)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				iconsMutex.Lock()
				delete(icons, iconKey(event.Name))
				iconsMutex.Unlock()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Println("icon watcher error:", err)
		case <-stop:
			return nil
		}
	}
}

// SetIcon 直接放入一个图标
func SetIcon(kind string, img image.Image) {
	iconsMutex.Lock()
	icons[strings.ToLower(kind)] = img
	iconsMutex.Unlock()
}

// GetIcon 按物品种类取图标
func GetIcon(kind string) (image.Image, bool) {
	iconsMutex.RLock()
	img, exists := icons[strings.ToLower(kind)]
	iconsMutex.RUnlock()
	return img, exists
}
