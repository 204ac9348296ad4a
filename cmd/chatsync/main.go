// Command chatsync runs a chat node, the sync relay between nodes, or a
// one-off schema migration. Configuration comes from the environment; a
// .env file is loaded first when present.
package main

func main() {
	Execute()
}
