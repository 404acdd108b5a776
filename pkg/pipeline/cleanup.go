package pipeline

import (
	"log"
	"os"
)

// tracker 临时文件清理器
// 创建即登记、退出即清理：每个临时文件在写入前登记，
// 不论管道成功还是失败，sweep 都会删掉剩余的登记文件和运行目录。
// 删除失败只记日志，绝不覆盖主流程的结果或错误。
type tracker struct {
	dir   string
	paths []string
	seen  map[string]bool
}

func newTracker(dir string) *tracker {
	return &tracker{
		dir:  dir,
		seen: make(map[string]bool),
	}
}

// register 登记一个待清理的临时文件（按路径去重）
// 单分片场景下分片路径就是归一化文件本身，去重保证只删一次。
func (t *tracker) register(path string) {
	if path == "" || t.seen[path] {
		return
	}
	t.seen[path] = true
	t.paths = append(t.paths, path)
}

// remove 立即删除一个已登记的文件并注销它
func (t *tracker) remove(path string) {
	if !t.seen[path] {
		return
	}
	delete(t.seen, path)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️ 删除临时文件失败: %s: %v", path, err)
	}
}

// sweep 清理所有剩余的登记文件和运行目录
func (t *tracker) sweep() {
	for _, path := range t.paths {
		if !t.seen[path] {
			continue
		}
		delete(t.seen, path)

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("⚠️ 删除临时文件失败: %s: %v", path, err)
		}
	}

	if t.dir != "" {
		if err := os.RemoveAll(t.dir); err != nil {
			log.Printf("⚠️ 删除临时目录失败: %s: %v", t.dir, err)
		}
	}
}
