package repository

var AdvisoryKey = advisoryKey
