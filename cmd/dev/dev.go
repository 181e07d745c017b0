package main

import (
	"fmt"
	"log"
	"net"
	"os/exec"
	"runtime"
	"time"

	"github.com/zintix-labs/gridlab/demo"
	"github.com/zintix-labs/gridlab/server"
	"github.com/zintix-labs/gridlab/server/netsvr"
	"github.com/zintix-labs/gridlab/server/svrcfg"
)

func main() {
	runDevPanel()
}

// runDevPanel 啟動 demo 引擎組態的 server 並打開 /dev 面板。
// 面板路由只在 ModeDev 掛載，所以這裡必須把 demo 設定切到 dev 模式。
func runDevPanel() {
	svr := netsvr.NewChiServerDefault()
	addr := svr.Address()
	url := "http://localhost" + addr + "/dev"
	go func() {
		// Wait until the server is actually listening, then open the browser.
		if err := waitForTCP(addr, 5*time.Second); err != nil {
			log.Fatal("dev server not ready:" + err.Error())
		}
		if err := openBrowser(url); err != nil {
			log.Fatal("open browser failed:" + err.Error())
		}
	}()
	scfg, err := demo.NewServerConfig()
	if err != nil {
		log.Fatal("set server configs error:" + err.Error())
	}
	scfg.Mode = svrcfg.ModeDev
	server.RunWithSvr(scfg, svr)
}

func waitForTCP(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := "127.0.0.1" + addr
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", url, 200*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
	}
	return fmt.Errorf("timeout waiting for %s", addr)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
