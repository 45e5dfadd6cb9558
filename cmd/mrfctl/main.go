package main

import (
	mrf49xa "github.com/doismellburning/mrf49xa/src"
)

func main() {
	mrf49xa.CtlMain()
}
