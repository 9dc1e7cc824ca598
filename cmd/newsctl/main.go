package main

import "github.com/kirillkom/news-retriever/internal/cli"

func main() {
	cli.Execute()
}
