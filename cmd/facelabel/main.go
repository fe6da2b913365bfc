// facelabel captions every face in a live camera feed with its estimated
// gender and age bucket.
package main

import "runtime"

func init() {
	// GUI backends need the window loop on the process's main thread.
	runtime.LockOSThread()
}

func main() {
	Execute()
}
