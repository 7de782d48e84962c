package elog

const Version = "0.1.0"
