//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

const (
	binaryName = "bin/chat-relay"
	mainPath   = "./cmd/server"
)

func Build() error {
	fmt.Println("🔨 Building relay binary...")
	return runCmd("go", "build", "-o", binaryName, mainPath)
}

func Test() error {
	fmt.Println("🧪 Running tests...")
	return runCmd("go", "test", "./...")
}

func Vet() error {
	fmt.Println("🔍 Running go vet...")
	return runCmd("go", "vet", "./...")
}

func Check() {
	mg.Deps(Vet, Test)
}

func Run() error {
	mg.Deps(Build)
	fmt.Println("🚀 Starting relay...")
	return runCmd("./" + binaryName)
}

func Clean() {
	fmt.Println("🧹 Cleaning up...")
	os.Remove(binaryName)
}

func runCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
