package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tigerbot-team/tigerbot/swerve-controller/pkg/joystick"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	jDev := os.Getenv("JOYSTICK_DEVICE")
	if jDev == "" {
		jDev = joystick.DefaultDevice
	}
	j, err := joystick.NewJoystick(jDev)
	if err != nil {
		fmt.Println("Failed to open joystick:", err)
		os.Exit(1)
	}
	go func() {
		<-ctx.Done()
		_ = j.Close()
	}()

	fmt.Println("Opened joystick; press buttons to see the odometry commands they map to")
	for {
		e, err := j.ReadEvent()
		if err != nil {
			if ctx.Err() == nil {
				fmt.Println("Joystick failed:", err)
			}
			return
		}
		if c := joystick.CommandFor(e); c != joystick.CommandNone {
			fmt.Printf("%v init=%v -> %v\n", e, e.Init, c)
		} else {
			fmt.Printf("%v init=%v\n", e, e.Init)
		}
	}
}
