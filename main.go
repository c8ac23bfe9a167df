package main

func main() {
	exitOnError(newRootCmd().Execute())
}
