// Command docsearch serves and builds documentation search indexes.
package main

func main() {
	Execute()
}
